package firebasestore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"

	"github.com/apphub/apphub-server/internal/domain"
)

// HasUsers reports whether Firebase Auth holds any account.
func (s *Store) HasUsers(ctx context.Context) (bool, error) {
	return s.dir.HasUsers(ctx)
}

// GetUsers lists every account, oldest first.
func (s *Store) GetUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.dir.Users(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return users, nil
}

// GetUser returns one account.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.dir.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserRole sets the role claim. Existing ID tokens carry the old role
// until they are refreshed.
func (s *Store) UpdateUserRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	u, err := s.dir.SetRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserDisabled flips the Firebase Auth disabled flag.
func (s *Store) SetUserDisabled(ctx context.Context, userID string, disabled bool) (*domain.User, error) {
	u, err := s.dir.SetDisabled(ctx, userID, disabled)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes every document under users/{uid}, then the account.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.dir.User(ctx, userID); err != nil {
		return err
	}

	bw := s.fs.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, coll := range []string{collHistory, collFavorites, collApps, collCategories} {
		refs, err := s.user(userID).Collection(coll).DocumentRefs(ctx).GetAll()
		if err != nil {
			bw.End()
			return fmt.Errorf("list %s of user %s: %w", coll, userID, err)
		}
		for _, ref := range refs {
			job, err := bw.Delete(ref)
			if err != nil {
				bw.End()
				return fmt.Errorf("queue delete: %w", err)
			}
			jobs = append(jobs, job)
		}
	}
	job, err := bw.Delete(s.user(userID))
	if err != nil {
		bw.End()
		return fmt.Errorf("queue delete: %w", err)
	}
	jobs = append(jobs, job)
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("delete data of user %s: %w", userID, err)
		}
	}

	if err := s.dir.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", userID, "documents", len(jobs)-1)
	return nil
}
