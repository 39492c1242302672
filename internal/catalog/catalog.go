// Package catalog exposes the read-only facts this service consumes from the
// course/user management system: roles, course ownership and display names.
// The catalog system owns the data; nothing here writes to it.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// Catalog answers identity and ownership questions for the lifecycle manager
// and enriches session logs with human-readable names.
type Catalog interface {
	Role(ctx context.Context, userID string) (Role, error)
	IsCourseOwner(ctx context.Context, userID, courseID string) (bool, error)
	CourseOwner(ctx context.Context, courseID string) (string, error)
	OwnedCourses(ctx context.Context, userID string) ([]string, error)
	UserName(ctx context.Context, userID string) (string, error)
	CourseTitle(ctx context.Context, courseID string) (string, error)
}

// Read models over the catalog system's tables.
type user struct {
	ID       string `gorm:"primaryKey;size:50"`
	Username string `gorm:"size:150"`
	Role     string `gorm:"size:20"`
}

func (user) TableName() string { return "users" }

type course struct {
	ID           string `gorm:"primaryKey;size:50"`
	Title        string `gorm:"size:200"`
	InstructorID string `gorm:"index;size:50"`
}

func (course) TableName() string { return "courses" }

// GormCatalog implements Catalog over the shared relational database.
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// Migrate creates the catalog tables when they do not exist yet. In
// deployments where the catalog system manages its own schema this is a
// no-op on existing tables.
func (c *GormCatalog) Migrate() error {
	return c.db.AutoMigrate(&user{}, &course{})
}

func (c *GormCatalog) Role(ctx context.Context, userID string) (Role, error) {
	var u user
	if err := c.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
		}
		return "", fmt.Errorf("lookup role for %s: %w", userID, err)
	}
	return Role(u.Role), nil
}

func (c *GormCatalog) IsCourseOwner(ctx context.Context, userID, courseID string) (bool, error) {
	owner, err := c.CourseOwner(ctx, courseID)
	if err != nil {
		return false, err
	}
	return owner == userID, nil
}

func (c *GormCatalog) CourseOwner(ctx context.Context, courseID string) (string, error) {
	var crs course
	if err := c.db.WithContext(ctx).First(&crs, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("course %s: %w", courseID, types.ErrNotFound)
		}
		return "", fmt.Errorf("lookup course %s: %w", courseID, err)
	}
	return crs.InstructorID, nil
}

func (c *GormCatalog) OwnedCourses(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := c.db.WithContext(ctx).Model(&course{}).
		Where("instructor_id = ?", userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list courses for %s: %w", userID, err)
	}
	return ids, nil
}

func (c *GormCatalog) UserName(ctx context.Context, userID string) (string, error) {
	var u user
	if err := c.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
		}
		return "", fmt.Errorf("lookup user %s: %w", userID, err)
	}
	return u.Username, nil
}

func (c *GormCatalog) CourseTitle(ctx context.Context, courseID string) (string, error) {
	var crs course
	if err := c.db.WithContext(ctx).First(&crs, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("course %s: %w", courseID, types.ErrNotFound)
		}
		return "", fmt.Errorf("lookup course %s: %w", courseID, err)
	}
	return crs.Title, nil
}

// SeedUser and SeedCourse insert catalog rows. They exist for local
// development and tests.
func (c *GormCatalog) SeedUser(ctx context.Context, id, username string, role Role) error {
	return c.db.WithContext(ctx).Create(&user{ID: id, Username: username, Role: string(role)}).Error
}

func (c *GormCatalog) SeedCourse(ctx context.Context, id, title, instructorID string) error {
	return c.db.WithContext(ctx).Create(&course{ID: id, Title: title, InstructorID: instructorID}).Error
}
