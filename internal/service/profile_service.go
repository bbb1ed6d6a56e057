package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/oklog/ulid/v2"
)

// ErrStorageUnavailable is returned when no object storage is configured
var ErrStorageUnavailable = errors.New("file storage is not configured")

// ErrUnsupportedImage is returned for avatar uploads that are not JPEG, PNG or WebP
var ErrUnsupportedImage = errors.New("invalid file type, only JPEG, PNG and WebP images are allowed")

var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ProfileService reads and edits the signed-in user's profile
type ProfileService struct {
	users domain.UserRepository
	files domain.FileRepository // nil when object storage is not configured
	clock domain.Clock
}

// NewProfileService creates a new profile service
func NewProfileService(users domain.UserRepository, files domain.FileRepository, clock domain.Clock) *ProfileService {
	return &ProfileService{users: users, files: files, clock: clock}
}

// Get returns the user with their profile
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ProfileInput is the profile edit form. Nil fields are left unchanged.
type ProfileInput struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	Bio         *string `json:"bio"`
	Gender      *string `json:"gender"`
	DateOfBirth *string `json:"date_of_birth"` // YYYY-MM-DD, empty clears it
	PushToken   *string `json:"push_token"`
}

// Update applies the profile form
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileInput) (*domain.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	verr := domain.NewValidationError()
	if in.FullName != nil {
		first, last := domain.SplitFullName(*in.FullName)
		if first == "" {
			verr.Add("full_name", "full name is required")
		}
		user.FirstName, user.LastName = first, last
	}
	if in.PhoneNumber != nil {
		phone := strings.TrimSpace(*in.PhoneNumber)
		if phone != "" && !phonePattern.MatchString(phone) {
			verr.Add("phone_number", "enter a valid phone number")
		}
		user.Profile.PhoneNumber = phone
	}
	if in.Bio != nil {
		user.Profile.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Gender != nil {
		switch g := strings.ToUpper(strings.TrimSpace(*in.Gender)); g {
		case "", domain.GenderMale, domain.GenderFemale, domain.GenderOther:
			user.Profile.Gender = g
		default:
			verr.Add("gender", "gender must be one of M, F, O")
		}
	}
	if in.DateOfBirth != nil {
		dob, msg := s.parseDateOfBirth(*in.DateOfBirth)
		if msg != "" {
			verr.Add("date_of_birth", msg)
		}
		user.Profile.DateOfBirth = dob
	}
	if in.PushToken != nil {
		user.Profile.PushToken = strings.TrimSpace(*in.PushToken)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// UploadAvatar stores a profile picture and links it to the profile
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, data []byte, contentType string) (*domain.User, error) {
	if s.files == nil {
		return nil, ErrStorageUnavailable
	}

	// Trust the bytes over the client supplied header
	detected := http.DetectContentType(data)
	ext, ok := avatarExtensions[detected]
	if !ok {
		ext, ok = avatarExtensions[contentType]
		if !ok || detected != "application/octet-stream" {
			return nil, ErrUnsupportedImage
		}
		detected = contentType
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("avatars/%s/%s.%s", user.ID, ulid.Make().String(), ext)
	url, err := s.files.Upload(ctx, data, filename, detected)
	if err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}
	if err := s.users.UpdateAvatar(ctx, user.ID, url); err != nil {
		return nil, fmt.Errorf("failed to save avatar: %w", err)
	}
	user.Profile.AvatarURL = url
	return user, nil
}

func (s *ProfileService) parseDateOfBirth(value string) (*time.Time, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ""
	}
	if !datePattern.MatchString(value) {
		return nil, "date of birth must be YYYY-MM-DD"
	}
	dob, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, "date of birth must be YYYY-MM-DD"
	}
	if dob.After(s.clock.Now()) {
		return nil, "date of birth cannot be in the future"
	}
	return &dob, ""
}
