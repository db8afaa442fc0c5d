package pipeline

import "strings"

var systemFiles = map[string]struct{}{
	".DS_Store":  {},
	".localized": {},
}

// allowedDotfiles are the configuration dotfiles worth mirroring. Any other
// name starting with a dot is treated as private or generated state.
var allowedDotfiles = map[string]struct{}{
	".vimrc":        {},
	".zshrc":        {},
	".bashrc":       {},
	".gitconfig":    {},
	".tmux.conf":    {},
	".profile":      {},
	".bash_profile": {},
	".zprofile":     {},
	".zshenv":       {},
	".gitignore":    {},
	".editorconfig": {},
	".npmrc":        {},
}

// IsEligible reports whether a file with the given leaf name should be synced.
func IsEligible(name string) bool {
	if _, ok := systemFiles[name]; ok {
		return false
	}

	if strings.HasPrefix(name, ".") {
		_, ok := allowedDotfiles[name]
		return ok
	}

	return true
}
