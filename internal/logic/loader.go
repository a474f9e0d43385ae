package logic

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

// LoadDir registers every Lua procedure found in fsys. Files are laid out
// as <module>/<operation>[@<version>].<mode>.lua; files that do not match
// are skipped with a warning. A script that fails to compile aborts the
// load.
func LoadDir(fsys fs.FS, reg *Registry, logger *slog.Logger) (int, error) {
	loaded := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".lua" {
			return nil
		}
		ref, ok := parseProcedurePath(p)
		if !ok {
			logger.Warn("skipping procedure file with unexpected name", "path", p)
			return nil
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		proc := NewLuaProcedure(p, string(src), logger)
		if err := proc.Compile(); err != nil {
			return err
		}
		reg.Register(ref, proc)
		logger.Debug("procedure loaded", "procedure", ref.String(), "path", p)
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("load procedures: %w", err)
	}
	return loaded, nil
}

func parseProcedurePath(p string) (ProcedureRef, bool) {
	module, file := path.Split(p)
	module = strings.TrimSuffix(module, "/")
	if module == "" || strings.Contains(module, "/") {
		return ProcedureRef{}, false
	}
	base := strings.TrimSuffix(file, ".lua")
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return ProcedureRef{}, false
	}
	name, mode := base[:dot], base[dot+1:]
	if mode != ModeSync && mode != ModeAsync {
		return ProcedureRef{}, false
	}
	op, version, _ := strings.Cut(name, "@")
	if op == "" {
		return ProcedureRef{}, false
	}
	return ProcedureRef{Module: module, Operation: op, Version: version, Mode: mode}, true
}
