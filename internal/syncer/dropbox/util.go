package dropbox

import (
	"errors"
	"path"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
)

func ensureFolder(client files.Client, p string) error {
	arg := files.NewCreateFolderArg(p)
	arg.Autorename = false

	if _, err := client.CreateFolderV2(arg); err != nil {
		if isConflict(err) {
			return nil
		}

		return err
	}

	return nil
}

func normalizePath(p string) string {
	return path.Clean("/" + strings.Trim(p, "/"))
}

func isConflict(err error) bool {
	if apiErr, ok := errors.AsType[files.CreateFolderV2APIError](err); ok {
		return apiErr.EndpointError != nil &&
			apiErr.EndpointError.Path != nil &&
			apiErr.EndpointError.Path.Tag == "conflict"
	}

	return false
}
