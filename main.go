package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"

	"github.com/hellhand/kube-engine/internal/config"
	"github.com/hellhand/kube-engine/internal/input"
	"github.com/hellhand/kube-engine/internal/render"
	"github.com/hellhand/kube-engine/internal/scene"
)

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "kube.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("fatal", "err", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level, AddSource: true})))

	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	defer window.Destroy()

	// Ensure the framebuffer has a non-zero size before initializing Vulkan.
	for {
		w, h := window.GetFramebufferSize()
		if w > 0 && h > 0 {
			break
		}
		glfw.WaitEventsTimeout(0.01)
	}

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	world := scene.NewWorld(cfg.Window.Width, cfg.Window.Height, scene.Shaders{
		ObjectVert: cfg.Assets.Shaders.ObjectVert,
		ObjectFrag: cfg.Assets.Shaders.ObjectFrag,
		UIVert:     cfg.Assets.Shaders.UIVert,
		UIFrag:     cfg.Assets.Shaders.UIFrag,
	})
	in := input.New(input.WindowSource(window))
	rt := newDemo(in)

	if err := rt.Awake(world); err != nil {
		return errors.Wrap(err, "awake")
	}
	hits := scene.NewHitMap(world.Width, world.Height)
	hits.Batch(world)

	r, err := render.New(window, cfg, world)
	if err != nil {
		return errors.Wrap(err, "init vulkan")
	}
	defer shutdown(r, rt, world)

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width int, height int) {
		r.RequestSwapchainRecreate()
	})

	rt.gpu = r
	if err := rt.Start(world); err != nil {
		return errors.Wrap(err, "start")
	}

	slog.Info("entering main loop", "objects", world.Objects.Len(), "uis", world.UIs.Len())

	for !window.ShouldClose() {
		glfw.PollEvents()

		if err := rt.Update(world); err != nil {
			return errors.Wrap(err, "update")
		}

		x, y := in.MousePos()
		if in.MouseButtonDown(glfw.MouseButtonLeft) {
			slog.Info("click", "x", x, "y", y, "ui", hits.At(x, y))
		}

		if err := r.DrawFrame(mgl32.Vec2{float32(x), float32(y)}); err != nil {
			return errors.Wrap(err, "draw frame")
		}
	}
	return nil
}

// shutdown releases everything in dependency order: entities before the
// device they live on.
func shutdown(r *render.Renderer, rt scene.Routine, w *scene.World) {
	r.WaitIdle()
	rt.End(w)

	for _, h := range w.Objects.Handles() {
		r.DestroyObject(h)
		w.Objects.Remove(h)
	}
	for _, h := range w.UIs.Handles() {
		r.DestroyUI(h)
		w.UIs.Remove(h)
	}
	for _, h := range w.Cameras.Handles() {
		w.Cameras.Remove(h)
	}
	for _, h := range w.Lights.Handles() {
		w.Lights.Remove(h)
	}
	r.Cleanup()
}
