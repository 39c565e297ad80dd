package evidence

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	"github.com/remcomokveld/dagger/internal/errors"
)

// registryError classifies a registry failure and attaches suggestions.
func registryError(err error, ref, operation string) *errors.HarnessError {
	herr := exportError(fmt.Sprintf("%s %s", operation, ref), err)

	var terr *transport.Error
	if !stderrors.As(err, &terr) {
		if operation == "parse" {
			return herr.WithSuggestion("Use a reference like registry.example.com/team/relocheck-evidence:tag")
		}
		return herr.WithSuggestion("Check network connectivity to the registry")
	}

	switch terr.StatusCode {
	case http.StatusUnauthorized:
		herr.WithSuggestion("Log in to the registry (docker login) so the default keychain has credentials")
	case http.StatusForbidden:
		herr.WithSuggestion("The credentials in use lack push or pull permission for this repository")
	case http.StatusNotFound:
		herr.WithSuggestion("Check the repository name and tag")
	case http.StatusTooManyRequests:
		herr.WithSuggestion("The registry is rate limiting requests; retry later")
	default:
		if terr.StatusCode >= 500 {
			herr.WithSuggestion("The registry reported a server error; retry later")
		}
	}
	return herr
}
