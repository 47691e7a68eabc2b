package buildsys

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// CompileCommandsFile is the name CMake uses for its compilation database.
const CompileCommandsFile = "compile_commands.json"

// FindCompileCommands returns the compilation databases present in the
// layout's build directories, static first.
func FindCompileCommands(layout Layout) ([]string, error) {
	result := []string{}
	for _, variant := range []Variant{Static, Shared} {
		dir := layout.BuildDir(variant)
		if dir == "" {
			continue
		}

		path := filepath.Join(dir, CompileCommandsFile)
		_, err := os.Stat(path)
		if err == nil {
			result = append(result, path)
		} else if !eris.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(err, "failed to check %s", path)
		}
	}
	return result, nil
}

// MergeCompileCommands concatenates several compile_commands.json files.
// It assumes that they only contain absolute paths.
func MergeCompileCommands(ctx context.Context, output string, inputs ...string) error {
	if len(inputs) == 0 {
		return eris.New("no compilation databases to merge")
	}

	merged := make([]interface{}, 0)
	for _, fpath := range inputs {
		data, err := os.ReadFile(fpath)
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", fpath)
		}

		var chunk []interface{}
		err = json.Unmarshal(data, &chunk)
		if err != nil {
			return eris.Wrapf(err, "failed to decode %s", fpath)
		}

		log(ctx).Debug().Str("path", fpath).Msgf("%d entries in %s", len(chunk), fpath)
		merged = append(merged, chunk...)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to encode output")
	}

	err = os.WriteFile(output, data, 0o660)
	if err != nil {
		return eris.Wrapf(err, "failed to write to %s", output)
	}

	log(ctx).Info().Str("path", output).Msgf("Wrote %d entries to %s", len(merged), output)
	return nil
}
