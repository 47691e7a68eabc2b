package buildsys

import (
	"context"
	"path/filepath"
	"sort"
)

// Images maps the names accepted on the command line to image names.
var Images = map[string]string{
	"faabric":              "faabric",
	"faabric-base":         "faabric-base",
	"faabric-base-runtime": "faabric-base-runtime",
}

const imagePlatforms = "linux/amd64,linux/arm64"

// ImageBuildOptions controls ContainerBuilder.Build
type ImageBuildOptions struct {
	NoCache bool
	Push    bool
}

// ContainerBuilder builds and pushes the project's docker images.
type ContainerBuilder struct {
	layout Layout
	runner Runner
}

func NewContainerBuilder(layout Layout, runner Runner) *ContainerBuilder {
	return &ContainerBuilder{layout: layout, runner: runner}
}

// Tag returns the full tag for image at the project's version.
func (b *ContainerBuilder) Tag(image string) string {
	return b.layout.ImageRepo + "-" + image + ":" + b.layout.Version
}

func (b *ContainerBuilder) resolve(names []string) ([]string, error) {
	if b.layout.Version == "" {
		return nil, &ConfigurationError{Field: "VERSION"}
	}

	if len(names) == 0 {
		return nil, &ConfigurationError{Field: "image"}
	}

	allowed := make([]string, 0, len(Images))
	for name := range Images {
		allowed = append(allowed, name)
	}

	result := make([]string, len(names))
	for idx, name := range names {
		image, ok := Images[name]
		if !ok {
			sort.Strings(allowed)
			return nil, &ConfigurationError{Field: "container", Value: name, Allowed: allowed}
		}
		result[idx] = image
	}
	return result, nil
}

// BuildArgs returns the buildx command line for image.
func (b *ContainerBuilder) BuildArgs(image string, opts ImageBuildOptions) []string {
	args := []string{"docker", "buildx", "build"}
	if opts.Push {
		args = append(args, "--push")
	}

	args = append(args, "--platform", imagePlatforms)
	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	return append(args,
		"-t", b.Tag(image),
		"-f", filepath.Join(b.layout.ProjectRoot, "docker", image+".dockerfile"),
		"--build-arg", "FAABRIC_VERSION="+b.layout.Version,
		".",
	)
}

func (b *ContainerBuilder) env(extra map[string]string) map[string]string {
	env := make(map[string]string, len(b.layout.Env)+len(extra))
	for k, v := range b.layout.Env {
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

// Build builds each named image in order and stops at the first failure.
// All names are checked before anything runs.
func (b *ContainerBuilder) Build(ctx context.Context, names []string, opts ImageBuildOptions) error {
	images, err := b.resolve(names)
	if err != nil {
		return err
	}

	for _, image := range images {
		err := b.runner.Run(ctx, Command{
			Args: b.BuildArgs(image, opts),
			Dir:  b.layout.ProjectRoot,
			Env:  b.env(map[string]string{"DOCKER_BUILDKIT": "1"}),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Push pushes each named image in order.
func (b *ContainerBuilder) Push(ctx context.Context, names []string) error {
	images, err := b.resolve(names)
	if err != nil {
		return err
	}

	for _, image := range images {
		err := b.runner.Run(ctx, Command{
			Args: []string{"docker", "push", b.Tag(image)},
			Dir:  b.layout.ProjectRoot,
			Env:  b.env(nil),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
