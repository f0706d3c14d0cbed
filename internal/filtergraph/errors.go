package filtergraph

import (
	"fmt"

	"duet/internal/services"
)

// CompilationError reports scenes or assets the compiler cannot turn into a
// command. Scene is zero when the problem is not tied to one scene.
type CompilationError struct {
	Scene  int
	Reason string
}

func (e *CompilationError) Error() string {
	if e.Scene > 0 {
		return fmt.Sprintf("scene %d: %s", e.Scene, e.Reason)
	}
	return e.Reason
}

// Unwrap lets errors.Is match services.ErrCompilation.
func (e *CompilationError) Unwrap() error {
	return services.ErrCompilation
}

func compileErr(scene int, format string, args ...any) error {
	return &CompilationError{Scene: scene, Reason: fmt.Sprintf(format, args...)}
}
