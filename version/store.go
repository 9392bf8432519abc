package version

import (
	"context"
	"time"
)

// Store persists versions. Implementations assign version numbers atomically per organization
// and publish atomically so that at most one version per organization is active.
type Store interface {
	// Create assigns the next number of the organization to a copy of v, stores it as a draft
	// and returns the stored copy.
	Create(ctx context.Context, v *Version) (*Version, error)
	Get(ctx context.Context, id string) (*Version, error)

	// List returns the versions of an organization newest first. An empty status lists all.
	List(ctx context.Context, orgID string, status Status) ([]*Version, error)

	// Active returns the active version of an organization or ErrNotFound.
	Active(ctx context.Context, orgID string) (*Version, error)

	// Publish marks the version published and active, demoting any other active version of the
	// organization.
	Publish(ctx context.Context, id string) (*Version, error)

	// Archive moves the version to its terminal state and deactivates it.
	Archive(ctx context.Context, id string) (*Version, error)

	Close() error
}

// Sequencer hands out version numbers for an organization.
type Sequencer interface {
	Next(ctx context.Context, orgID string) (int, error)
}

// prepareCreate validates v and returns the copy to be stored.
func prepareCreate(v *Version) (*Version, error) {
	if v == nil {
		return nil, ErrNilVersion
	}
	if v.OrganizationID == "" {
		return nil, ErrNoOrganization
	}
	c := v.Copy()
	c.Status = StatusDraft
	c.IsActive = false
	c.PublishedAt = nil
	c.ArchivedAt = nil
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return c, nil
}

// applyPublish moves v into the published state.
func applyPublish(v *Version, now time.Time) error {
	if err := Transition(v.Status, StatusPublished); err != nil {
		return err
	}
	v.Status = StatusPublished
	v.IsActive = true
	if v.PublishedAt == nil {
		v.PublishedAt = &now
	}
	return nil
}

// applyArchive moves v into the archived state.
func applyArchive(v *Version, now time.Time) error {
	if err := Transition(v.Status, StatusArchived); err != nil {
		return err
	}
	v.Status = StatusArchived
	v.IsActive = false
	v.ArchivedAt = &now
	return nil
}
