package render

import (
	"errors"
	"testing"

	"github.com/vulkan-go/vulkan"
)

func memoryProperties(flags ...vulkan.MemoryPropertyFlagBits) vulkan.PhysicalDeviceMemoryProperties {
	var props vulkan.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = uint32(len(flags))
	for i, f := range flags {
		props.MemoryTypes[i] = vulkan.MemoryType{PropertyFlags: vulkan.MemoryPropertyFlags(f)}
	}
	return props
}

func TestFindMemoryType(t *testing.T) {
	props := memoryProperties(
		vulkan.MemoryPropertyDeviceLocalBit,
		vulkan.MemoryPropertyHostVisibleBit,
		vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit,
		vulkan.MemoryPropertyDeviceLocalBit|vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit,
	)
	hostCoherent := vulkan.MemoryPropertyHostVisibleBit | vulkan.MemoryPropertyHostCoherentBit

	tests := []struct {
		name     string
		typeBits uint32
		want     vulkan.MemoryPropertyFlagBits
		index    uint32
		err      bool
	}{
		{"first device local", 0xf, vulkan.MemoryPropertyDeviceLocalBit, 0, false},
		{"type bits skip first", 0xe, vulkan.MemoryPropertyDeviceLocalBit, 3, false},
		{"flags are a subset", 0xf, hostCoherent, 2, false},
		{"first host visible", 0xf, vulkan.MemoryPropertyHostVisibleBit, 1, false},
		{"no allowed type", 0x1, hostCoherent, 0, true},
		{"no bits", 0, vulkan.MemoryPropertyDeviceLocalBit, 0, true},
		{"bits past count ignored", 0x30, vulkan.MemoryPropertyDeviceLocalBit, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := findMemoryType(props, tt.typeBits, tt.want)
			if tt.err {
				if !errors.Is(err, ErrNoMemoryType) {
					t.Fatalf("err = %v, want ErrNoMemoryType", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.index {
				t.Errorf("findMemoryType() = %d, want %d", got, tt.index)
			}
		})
	}
}

func TestBytesOf(t *testing.T) {
	if got := bytesOf([]uint32{}); got != nil {
		t.Errorf("empty slice gave %v", got)
	}
	b := bytesOf([]uint32{1, 2, 3})
	if len(b) != 12 {
		t.Fatalf("len = %d, want 12", len(b))
	}
	if b[0] != 1 || b[4] != 2 || b[8] != 3 {
		t.Errorf("unexpected little-endian layout % x", b)
	}
}

func TestBytesToUint32(t *testing.T) {
	words, err := bytesToUint32([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 || words[0] != 0x07230203 || words[1] != 1 {
		t.Errorf("words = %#x", words)
	}
	for _, bad := range [][]byte{nil, {1, 2, 3}} {
		if _, err := bytesToUint32(bad); err == nil {
			t.Errorf("bytesToUint32(%v) accepted", bad)
		}
	}
}
