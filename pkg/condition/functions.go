package condition

import (
	"fmt"
	"os"
)

// sandboxEnv returns the whitelisted evaluation environment. The same map
// is used for compilation (so identifiers type-check) and execution.
//
// expr provides `and`, `or`, and `not` as operators; the function forms
// are exposed as well so recipes can write either.
func sandboxEnv() map[string]interface{} {
	return map[string]interface{}{
		"and":             andFunc,
		"or":              orFunc,
		"not":             notFunc,
		"file_exists":     fileExists,
		"all_files_exist": allFilesExist,
		"file_is_newer":   fileIsNewer,
	}
}

// andFunc returns true when every argument is true.
func andFunc(args ...bool) bool {
	for _, arg := range args {
		if !arg {
			return false
		}
	}
	return true
}

// orFunc returns true when any argument is true.
func orFunc(args ...bool) bool {
	for _, arg := range args {
		if arg {
			return true
		}
	}
	return false
}

// notFunc negates its argument.
func notFunc(value bool) bool {
	return !value
}

// fileExists reports whether path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// allFilesExist reports whether every path in the list exists.
// Accepts a list of strings; the renderer hands lists through as
// []interface{} so both shapes are supported.
func allFilesExist(paths interface{}) (bool, error) {
	switch v := paths.(type) {
	case []string:
		for _, p := range v {
			if !fileExists(p) {
				return false, nil
			}
		}
		return true, nil
	case []interface{}:
		for _, elem := range v {
			p, ok := elem.(string)
			if !ok {
				return false, fmt.Errorf("all_files_exist: path must be a string, got %T", elem)
			}
			if !fileExists(p) {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("all_files_exist: expected a list of paths, got %T", paths)
	}
}

// fileIsNewer reports whether a was modified more recently than b.
// A missing file is never newer; a missing comparison target makes any
// existing file newer.
func fileIsNewer(a, b string) bool {
	infoA, errA := os.Stat(a)
	if errA != nil {
		return false
	}
	infoB, errB := os.Stat(b)
	if errB != nil {
		return true
	}
	return infoA.ModTime().After(infoB.ModTime())
}
