// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// fakeExecutor answers LookPath and RunSilent from tables and records
// piped invocations.
type fakeExecutor struct {
	bins    map[string]bool
	cmds    map[string]bool
	pipe    func(name string, args []string, stdin io.Reader, stdout io.Writer) error
	gotArgs []string
}

func (f *fakeExecutor) LookPath(file string) (string, error) {
	if f.bins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (f *fakeExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if f.cmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (f *fakeExecutor) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	f.gotArgs = append([]string{name}, args...)
	if f.pipe != nil {
		return f.pipe(name, args, stdin, stdout)
	}
	return nil
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		exec     *fakeExecutor
		wantName string
		wantErr  bool
	}{
		{
			name:     "docker",
			exec:     &fakeExecutor{bins: map[string]bool{"docker": true}, cmds: map[string]bool{"docker info": true}},
			wantName: "docker",
		},
		{
			name:     "podman when docker missing",
			exec:     &fakeExecutor{bins: map[string]bool{"podman": true}, cmds: map[string]bool{"podman info": true}},
			wantName: "podman",
		},
		{
			name:     "docker info fails",
			exec:     &fakeExecutor{bins: map[string]bool{"docker": true, "podman": true}, cmds: map[string]bool{"podman info": true}},
			wantName: "podman",
		},
		{
			name: "docker preferred",
			exec: &fakeExecutor{
				bins: map[string]bool{"docker": true, "podman": true},
				cmds: map[string]bool{"docker info": true, "podman info": true},
			},
			wantName: "docker",
		},
		{
			name:    "none",
			exec:    &fakeExecutor{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detect(context.Background(), tt.exec)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "no container runtime available") {
					t.Fatalf("err = %v, want no runtime error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.wantName {
				t.Errorf("runtime = %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestImageExists(t *testing.T) {
	ctx := context.Background()
	e := &fakeExecutor{cmds: map[string]bool{
		"docker image inspect markitdown:latest": true,
		"podman image exists markitdown:latest":  true,
	}}

	for _, rt := range []Runtime{newDocker(e), newPodman(e)} {
		if err := rt.ImageExists(ctx, "markitdown:latest"); err != nil {
			t.Errorf("%s: unexpected error: %v", rt.Name(), err)
		}
		err := rt.ImageExists(ctx, "missing:latest")
		if err == nil || !strings.Contains(err.Error(), "missing:latest") {
			t.Errorf("%s: err = %v, want mention of image", rt.Name(), err)
		}
	}
}

func TestRun(t *testing.T) {
	e := &fakeExecutor{pipe: func(name string, args []string, stdin io.Reader, stdout io.Writer) error {
		data, _ := io.ReadAll(stdin)
		_, err := stdout.Write([]byte("converted: " + string(data)))
		return err
	}}
	var out bytes.Buffer
	if err := newPodman(e).Run(context.Background(), "markitdown:latest", strings.NewReader("doc"), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "converted: doc" {
		t.Errorf("output = %q", out.String())
	}
	want := "podman run --rm -i --network none markitdown:latest"
	if got := strings.Join(e.gotArgs, " "); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}

	e.pipe = func(string, []string, io.Reader, io.Writer) error { return errors.New("exit 1") }
	if err := newDocker(e).Run(context.Background(), "markitdown:latest", nil, &out); err == nil {
		t.Fatal("expected error")
	}
}
