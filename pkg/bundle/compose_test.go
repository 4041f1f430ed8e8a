// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/pkg/platform"
	"github.com/banderole/banderole/pkg/trailer"
)

const testBuildID = "123e4567-e89b-12d3-a456-426614174000"

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompose(t *testing.T) {
	t.Parallel()

	stub := []byte("fake native executable image, long enough to matter")
	payload := []byte("PK\x03\x04 fake zip payload bytes")

	out := filepath.Join(t.TempDir(), "app")
	tr, err := Compose(ComposeOptions{
		StubPath:    writeTemp(t, "stub", stub),
		PayloadPath: writeTemp(t, "payload.zip", payload),
		OutputPath:  out,
		BuildID:     testBuildID,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if tr.Offset != uint64(len(stub)) {
		t.Errorf("Offset = %d, want %d", tr.Offset, len(stub))
	}
	if tr.Length != uint64(len(payload)) {
		t.Errorf("Length = %d, want %d", tr.Length, len(payload))
	}
	if want := sha256.Sum256(payload); tr.Hash != want {
		t.Errorf("Hash = %x, want %x", tr.Hash, want)
	}

	// The written file must decode to the same trailer.
	got, err := trailer.DecodeFile(out)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if got.BuildID != testBuildID || got.Offset != tr.Offset || got.Length != tr.Length {
		t.Errorf("decoded trailer mismatch: %+v", got)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if wantLen := len(stub) + len(payload) + trailer.TrailerSize; len(data) != wantLen {
		t.Errorf("artifact length = %d, want %d", len(data), wantLen)
	}
	if string(data[:len(stub)]) != string(stub) {
		t.Error("stub bytes were altered")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(out)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Errorf("artifact is not executable: %v", info.Mode())
		}
	}
}

func TestCompose_RefusesTrailedStub(t *testing.T) {
	t.Parallel()

	// Build a valid artifact, then try to use it as a stub.
	stub := writeTemp(t, "stub", []byte("stub image"))
	payload := writeTemp(t, "payload.zip", []byte("payload"))
	artifact := filepath.Join(t.TempDir(), "artifact")
	if _, err := Compose(ComposeOptions{
		StubPath:    stub,
		PayloadPath: payload,
		OutputPath:  artifact,
		BuildID:     testBuildID,
	}); err != nil {
		t.Fatalf("first Compose: %v", err)
	}

	_, err := Compose(ComposeOptions{
		StubPath:    artifact,
		PayloadPath: payload,
		OutputPath:  filepath.Join(t.TempDir(), "nested"),
		BuildID:     testBuildID,
	})
	if !errors.Is(err, issue.ErrBuild) {
		t.Fatalf("err = %v, want ErrBuild for trailered stub", err)
	}
}

func TestCompose_MissingInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stub := writeTemp(t, "stub", []byte("stub"))

	_, err := Compose(ComposeOptions{
		StubPath:    filepath.Join(dir, "no-stub"),
		PayloadPath: writeTemp(t, "p.zip", []byte("p")),
		OutputPath:  filepath.Join(dir, "out"),
		BuildID:     testBuildID,
	})
	if !errors.Is(err, issue.ErrBuild) {
		t.Errorf("missing stub: err = %v, want ErrBuild", err)
	}

	out := filepath.Join(dir, "out2")
	_, err = Compose(ComposeOptions{
		StubPath:    stub,
		PayloadPath: filepath.Join(dir, "no-payload"),
		OutputPath:  out,
		BuildID:     testBuildID,
	})
	if !errors.Is(err, issue.ErrBuild) {
		t.Errorf("missing payload: err = %v, want ErrBuild", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("partial output file was left behind")
	}
}

func TestStubName(t *testing.T) {
	t.Parallel()

	if got := StubName(platform.Target{OS: platform.Linux, Arch: "arm64"}); got != "banderole-stub-linux-arm64" {
		t.Errorf("StubName = %q", got)
	}
	if got := StubName(platform.Target{OS: platform.Windows, Arch: "amd64"}); got != "banderole-stub-windows-amd64.exe" {
		t.Errorf("StubName = %q", got)
	}
}

func TestFindStub(t *testing.T) {
	t.Parallel()

	target := platform.Target{OS: platform.Linux, Arch: "amd64"}

	t.Run("explicit path wins", func(t *testing.T) {
		t.Parallel()

		stub := writeTemp(t, "custom-stub", []byte("stub"))
		got, err := FindStub(stub, "", target)
		if err != nil {
			t.Fatalf("FindStub: %v", err)
		}
		if got != stub {
			t.Errorf("FindStub = %q, want %q", got, stub)
		}
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		t.Parallel()

		_, err := FindStub(filepath.Join(t.TempDir(), "absent"), "", target)
		if !errors.Is(err, issue.ErrBuild) {
			t.Fatalf("err = %v, want ErrBuild", err)
		}
	})

	t.Run("stub dir", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		want := filepath.Join(dir, StubName(target))
		if err := os.WriteFile(want, []byte("stub"), 0o755); err != nil {
			t.Fatal(err)
		}
		got, err := FindStub("", dir, target)
		if err != nil {
			t.Fatalf("FindStub: %v", err)
		}
		if got != want {
			t.Errorf("FindStub = %q, want %q", got, want)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Parallel()

		_, err := FindStub("", t.TempDir(), platform.Target{OS: "plan9", Arch: "mips"})
		if !errors.Is(err, issue.ErrBuild) {
			t.Fatalf("err = %v, want ErrBuild", err)
		}
	})
}
