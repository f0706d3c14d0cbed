package project

import (
	"context"
	"fmt"
)

// SceneCount returns the number of scene rows stored for a project id.
func (s *Store) SceneCount(ctx context.Context, projectID int64) int {
	var n int
	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenes WHERE project_id = ?`, projectID).Scan(&n)
	return n
}

// SetSchemaVersion overwrites the recorded schema version.
func (s *Store) SetSchemaVersion(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}
