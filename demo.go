package main

import (
	"fmt"
	"math"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/schollz/progressbar/v3"
	"github.com/vulkan-go/glfw/v3.3/glfw"

	"github.com/hellhand/kube-engine/internal/input"
	"github.com/hellhand/kube-engine/internal/scene"
)

const (
	camSpeed = 5000
	camTurn  = 100
)

var gravity = mgl32.Vec3{0, -2, 0}

// provisioner uploads entities to the GPU.
type provisioner interface {
	InitObject(h scene.Handle) error
	InitUI(h scene.Handle) error
}

// demo is the sample scene: a character dropping onto a floor, a movable
// light with a marker, a skybox and one button.
type demo struct {
	gpu   provisioner
	in    *input.Input
	clock *scene.Clock

	cam   *scene.Camera
	light *scene.Light

	character *scene.GameObject
	marker    *scene.GameObject
	skybox    *scene.GameObject
	floor     *scene.GameObject
	button    *scene.UI

	fall scene.Transpose
}

func newDemo(in *input.Input) *demo {
	return &demo{in: in, clock: scene.NewClock()}
}

func (d *demo) Awake(w *scene.World) error {
	d.cam = w.CreateCamera(mgl32.Vec3{0, 2, 20}, mgl32.Vec3{})
	d.light = w.CreateLight(mgl32.Vec3{0, 1.5, 1}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})

	d.character = w.CreateObject("body", "models/charactor/body.obj", "textures/charactor/body.png",
		mgl32.Vec3{5, 5, 0}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "spv/GameObject/soft.spv")
	d.character.AppendModel("bow", "models/charactor/bow.obj", "textures/charactor/bow.png", "spv/GameObject/glass.spv")
	d.character.AppendModel("clothes", "models/charactor/clothes.obj", "textures/charactor/clothes.png", "spv/GameObject/leather.spv")
	d.character.AppendModel("hair", "models/charactor/hair.obj", "textures/charactor/hair.png", "spv/GameObject/clothes.spv")
	d.character.SetColliderAt(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0.5, 1, 0.5})
	if err := d.character.DrawCollider(); err != nil {
		return err
	}

	d.marker = w.CreateObject("lightPos", "models/Light.obj", "textures/Light.png",
		d.light.Position, mgl32.Vec3{}, mgl32.Vec3{0.1, 0.1, 0.1}, "spv/GameObject/glass.spv")

	d.skybox = w.CreateObject("skybox", "models/skybox/Cube.obj", "textures/skybox/Cube.png",
		mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{100, 100, 100}, "spv/GameObject/base.spv")

	d.floor = w.CreateObject("Bottom", "models/bottom.obj", "textures/bottom.jpg",
		mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, "")
	d.floor.SetColliderAt(mgl32.Vec3{0, 0.1, 0}, mgl32.Vec3{10, 0.5, 10})
	if err := d.floor.DrawCollider(); err != nil {
		return err
	}

	var err error
	d.button, err = w.CreateUI("Button", true, mgl32.Vec3{}, mgl32.Vec4{0, 0, 50, 50})
	return err
}

// Start provisions every entity of w and starts the clock.
func (d *demo) Start(w *scene.World) error {
	if d.gpu == nil {
		return fmt.Errorf("demo started without a renderer")
	}
	objects, uis := w.Objects.Handles(), w.UIs.Handles()
	bar := progressbar.Default(int64(len(objects)+len(uis)), "uploading scene")
	defer bar.Close()

	for _, h := range objects {
		if err := d.gpu.InitObject(h); err != nil {
			return err
		}
		bar.Add(1)
	}
	for _, h := range uis {
		if err := d.gpu.InitUI(h); err != nil {
			return err
		}
		bar.Add(1)
	}
	d.clock.Start()
	return nil
}

func (d *demo) Update(w *scene.World) error {
	d.clock.Tick()
	return d.step(d.clock.Delta)
}

// step advances the scene by dt seconds.
func (d *demo) step(dt float32) error {
	d.marker.SetPosition(d.light.Position)

	switch {
	case d.character.OnColliderEnter(d.floor):
		d.fall.Stop()
	case d.character.IsCollider(d.floor):
	default:
		d.fall.Accel = gravity
	}
	if err := d.character.Move(d.fall.VelBySec(dt)); err != nil {
		return err
	}

	d.steerCamera(dt)
	d.steerLight()
	return nil
}

func (d *demo) steerCamera(dt float32) {
	yaw := float64(mgl32.DegToRad(d.cam.Rotation[1]))
	front := mgl32.Vec3{float32(math.Sin(-yaw)), 0, float32(math.Cos(-yaw))}.Mul(camSpeed * dt)
	right := mgl32.Vec3{float32(math.Cos(yaw)), 0, float32(math.Sin(yaw))}.Mul(camSpeed * dt)

	if !d.in.Key(glfw.KeyLeftAlt) {
		switch {
		case d.in.Key(glfw.KeyW):
			d.cam.MoveZ(front.Mul(-1))
		case d.in.Key(glfw.KeyS):
			d.cam.MoveZ(front)
		}
		switch {
		case d.in.Key(glfw.KeyA):
			d.cam.MoveX(right.Mul(-1))
		case d.in.Key(glfw.KeyD):
			d.cam.MoveX(right)
		}
		switch {
		case d.in.Key(glfw.KeyQ):
			d.cam.MoveY(camSpeed * dt)
		case d.in.Key(glfw.KeyE):
			d.cam.MoveY(-camSpeed * dt)
		}
		return
	}

	switch {
	case d.in.Key(glfw.KeyW):
		d.cam.Pitch(-camTurn * dt)
	case d.in.Key(glfw.KeyS):
		d.cam.Pitch(camTurn * dt)
	}
	switch {
	case d.in.Key(glfw.KeyA):
		d.cam.Yaw(-camTurn * dt)
	case d.in.Key(glfw.KeyD):
		d.cam.Yaw(camTurn * dt)
	}
}

func (d *demo) steerLight() {
	switch {
	case d.in.Key(glfw.KeyUp):
		d.light.Move(mgl32.Vec3{0, 0, -1})
	case d.in.Key(glfw.KeyDown):
		d.light.Move(mgl32.Vec3{0, 0, 1})
	}
	switch {
	case d.in.Key(glfw.KeyLeft):
		d.light.Move(mgl32.Vec3{-1, 0, 0})
	case d.in.Key(glfw.KeyRight):
		d.light.Move(mgl32.Vec3{1, 0, 0})
	}
	switch {
	case d.in.Key(glfw.KeyPageUp):
		d.light.Move(mgl32.Vec3{0, -1, 0})
	case d.in.Key(glfw.KeyPageDown):
		d.light.Move(mgl32.Vec3{0, 1, 0})
	}
}

func (d *demo) End(*scene.World) {}
