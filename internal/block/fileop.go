package block

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"legacymod/internal/errs"
	"legacymod/internal/plan"
	"legacymod/internal/template"
)

// FileOperationRunner implements create/createDir/copy/move/delete.
// path and, for create, content are template-substituted; parent
// directories are created as needed for create/copy/move.
type FileOperationRunner struct{}

func (FileOperationRunner) Describe(b *plan.Block, scope *template.Scope) string {
	path, _ := template.Render(b.Path, scope)
	return fmt.Sprintf("%s %s", b.Operation, path)
}

func (FileOperationRunner) Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error) {
	path, err := template.Render(b.Path, scope)
	if err != nil {
		return Result{}, err
	}

	switch b.Operation {
	case "create":
		content, err := template.Render(b.Content, scope)
		if err != nil {
			return Result{}, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Result{}, errs.IOWrap(err, "creating parent directory for %s", path)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Result{}, errs.IOWrap(err, "writing file %s", path)
		}
	case "createDir":
		if err := os.MkdirAll(path, 0o755); err != nil {
			return Result{}, errs.IOWrap(err, "creating directory %s", path)
		}
	case "copy":
		dest, err := template.Render(b.Dest, scope)
		if err != nil {
			return Result{}, err
		}
		if err := copyFile(path, dest); err != nil {
			return Result{}, errs.IOWrap(err, "copying %s to %s", path, dest)
		}
	case "move":
		dest, err := template.Render(b.Dest, scope)
		if err != nil {
			return Result{}, err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return Result{}, errs.IOWrap(err, "creating parent directory for %s", dest)
		}
		if err := os.Rename(path, dest); err != nil {
			return Result{}, errs.IOWrap(err, "moving %s to %s", path, dest)
		}
	case "delete":
		if err := os.RemoveAll(path); err != nil {
			return Result{}, errs.IOWrap(err, "deleting %s", path)
		}
	default:
		return Result{}, errs.Config("unknown file operation %q", b.Operation)
	}

	return Result{Success: true, Kind: string(plan.BlockFileOperation), Output: path, DefaultOutputVariable: "path"}, nil
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// TemplateGenerationRunner substitutes a named template with the
// current scope and writes the result to an output path: a thin layer
// over the same write-with-parent-dirs logic FileOperationRunner's
// create case uses.
type TemplateGenerationRunner struct{}

func (TemplateGenerationRunner) Describe(b *plan.Block, scope *template.Scope) string {
	path, _ := template.Render(b.Path, scope)
	return fmt.Sprintf("generate %s from template %s", path, b.Template)
}

func (TemplateGenerationRunner) Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error) {
	path, err := template.Render(b.Path, scope)
	if err != nil {
		return Result{}, err
	}
	rendered, err := template.Render(b.Template, scope)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, errs.IOWrap(err, "creating parent directory for %s", path)
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return Result{}, errs.IOWrap(err, "writing generated file %s", path)
	}
	return Result{Success: true, Kind: string(plan.BlockTemplateGeneration), Output: path, DefaultOutputVariable: "path"}, nil
}
