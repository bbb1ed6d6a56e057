package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gosimple/slug"
	"github.com/mansoorceksport/recgetup/internal/domain"
)

// CatalogService manages packages and scheduled classes
type CatalogService struct {
	packages domain.PackageRepository
	classes  domain.ClassRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(packages domain.PackageRepository, classes domain.ClassRepository) *CatalogService {
	return &CatalogService{packages: packages, classes: classes}
}

// ListPackages returns the purchasable packages, cheapest first
func (s *CatalogService) ListPackages(ctx context.Context) ([]*domain.ClassPackage, error) {
	pkgs, err := s.packages.GetActivePackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return pkgs, nil
}

// PackageID derives the package id from its name ("Gold Plus" -> "pkg_gold-plus")
func PackageID(name string) string {
	return "pkg_" + slug.Make(name)
}

// PackageInput is the admin form for a package
type PackageInput struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Price          int64  `json:"price"` // smallest currency unit
	DurationMonths int    `json:"duration_months"`
	MaxClasses     int    `json:"max_classes"`
	IsActive       *bool  `json:"is_active"`
}

// CreatePackage adds a package; its id is derived from the name
func (s *CatalogService) CreatePackage(ctx context.Context, in PackageInput) (*domain.ClassPackage, error) {
	pkg := &domain.ClassPackage{
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		DurationMonths: in.DurationMonths,
		MaxClasses:     in.MaxClasses,
		IsActive:       in.IsActive == nil || *in.IsActive,
	}
	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	pkg.ID = PackageID(pkg.Name)
	if pkg.ID == "pkg_" {
		verr := domain.NewValidationError()
		verr.Add("name", "name must contain letters or digits")
		return nil, verr
	}

	if err := s.packages.Create(ctx, pkg); err != nil {
		return nil, err
	}
	log.Printf("[Catalog] Created package %s (%s)", pkg.ID, domain.FormatAmount(pkg.Price))
	return pkg, nil
}

// UpdatePackage replaces the editable fields of a package. The id never changes.
func (s *CatalogService) UpdatePackage(ctx context.Context, id string, in PackageInput) (*domain.ClassPackage, error) {
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}

	pkg.Name = in.Name
	pkg.Description = in.Description
	pkg.Price = in.Price
	pkg.DurationMonths = in.DurationMonths
	pkg.MaxClasses = in.MaxClasses
	if in.IsActive != nil {
		pkg.IsActive = *in.IsActive
	}
	if err := pkg.Validate(); err != nil {
		return nil, err
	}

	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("failed to update package: %w", err)
	}
	return pkg, nil
}

// ClassInput is the admin form for a scheduled class
type ClassInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Instructor  string    `json:"instructor"`
	MeetingLink string    `json:"meeting_link"`
	PackageIDs  []string  `json:"package_ids"`
}

// CreateClass schedules a class. An empty package list makes it universal.
func (s *CatalogService) CreateClass(ctx context.Context, in ClassInput) (*domain.ScheduledClass, error) {
	class := &domain.ScheduledClass{}
	if err := s.applyClassInput(ctx, class, in); err != nil {
		return nil, err
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}
	log.Printf("[Catalog] Scheduled class %s at %s", class.ID, class.StartTime.Format(time.RFC3339))
	return class, nil
}

// UpdateClass replaces the fields of a scheduled class
func (s *CatalogService) UpdateClass(ctx context.Context, id string, in ClassInput) (*domain.ScheduledClass, error) {
	class, err := s.classes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
			return nil, domain.ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	if err := s.applyClassInput(ctx, class, in); err != nil {
		return nil, err
	}
	if err := s.classes.Update(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to update class: %w", err)
	}
	return class, nil
}

func (s *CatalogService) applyClassInput(ctx context.Context, class *domain.ScheduledClass, in ClassInput) error {
	class.Title = in.Title
	class.Description = in.Description
	class.StartTime = in.StartTime.UTC()
	class.EndTime = in.EndTime.UTC()
	class.Instructor = in.Instructor
	class.MeetingLink = in.MeetingLink
	class.PackageIDs = dedupe(in.PackageIDs)

	if err := class.Validate(); err != nil {
		return err
	}

	verr := domain.NewValidationError()
	for _, id := range class.PackageIDs {
		if _, err := s.packages.GetByID(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				verr.Add("package_ids", fmt.Sprintf("unknown package %q", id))
				continue
			}
			return fmt.Errorf("failed to get package: %w", err)
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
