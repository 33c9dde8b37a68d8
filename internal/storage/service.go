package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/vitrine-shop/vitrine/internal/platform/httpx"
	"github.com/vitrine-shop/vitrine/internal/rbac"
)

// Uploaders may request signed object URLs.
var Uploaders = rbac.Roles(rbac.RoleAdmin, rbac.RoleEditor)

const defaultTTL = time.Hour

// UploadURL is handed to clients that want to upload an object.
type UploadURL struct {
	Name      string    `json:"name"`
	UploadURL string    `json:"upload_url"`
	ObjectURL string    `json:"object_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeleteURL is handed to clients that want to remove an object.
type DeleteURL struct {
	Name      string    `json:"name"`
	DeleteURL string    `json:"delete_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type objectRequest struct {
	Name string `validate:"required,max=512,objectname"`
}

// Config configures Service.
type Config struct {
	Bucket string
	Region string
	TTL    time.Duration
	Logger *slog.Logger
	Now    func() time.Time
}

// Service hands out presigned object URLs.
type Service struct {
	signer   URLSigner
	bucket   string
	region   string
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(signer URLSigner, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	v := validator.New()
	_ = v.RegisterValidation("objectname", func(fl validator.FieldLevel) bool {
		return ValidObjectName(fl.Field().String())
	})
	return &Service{
		signer:   signer,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
		now:      cfg.Now,
		validate: v,
	}
}

// ValidObjectName reports whether name is usable as an object key.
func ValidObjectName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return false
		}
	}
	return !strings.ContainsFunc(name, unicode.IsControl)
}

// ObjectURL returns the public virtual-hosted URL of name.
func (s *Service) ObjectURL(name string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escapeKey(name))
}

// UploadURL signs a PUT for name.
func (s *Service) UploadURL(ctx context.Context, name string) (UploadURL, error) {
	if err := s.check(name); err != nil {
		return UploadURL{}, err
	}
	expires := s.now().Add(s.ttl).UTC()
	signed, err := s.signer.PresignPut(ctx, name, s.ttl)
	if err != nil {
		return UploadURL{}, err
	}
	s.logger.DebugContext(ctx, "storage upload url signed", slog.String("name", name))
	return UploadURL{Name: name, UploadURL: signed, ObjectURL: s.ObjectURL(name), ExpiresAt: expires}, nil
}

// DeleteURL signs a DELETE for name.
func (s *Service) DeleteURL(ctx context.Context, name string) (DeleteURL, error) {
	if err := s.check(name); err != nil {
		return DeleteURL{}, err
	}
	expires := s.now().Add(s.ttl).UTC()
	signed, err := s.signer.PresignDelete(ctx, name, s.ttl)
	if err != nil {
		return DeleteURL{}, err
	}
	s.logger.DebugContext(ctx, "storage delete url signed", slog.String("name", name))
	return DeleteURL{Name: name, DeleteURL: signed, ExpiresAt: expires}, nil
}

func (s *Service) check(name string) error {
	if err := s.validate.Struct(objectRequest{Name: name}); err != nil {
		return fmt.Errorf("%w: invalid object name", httpx.ErrValidation)
	}
	return nil
}

func escapeKey(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
