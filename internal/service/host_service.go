package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bark-labs/gntp-notify/internal/crypto"
	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/storage"
	"github.com/google/uuid"
)

const hostPasswordBytes = 24

// HostService manages the stored GNTP targets used by broadcasts and by
// remote sends that need per-host credentials.
type HostService struct {
	store storage.Store
}

// HostRequest describes upsert payload.
type HostRequest struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	Password      string `json:"password"`
	HashAlgorithm string `json:"hashAlgorithm"`
	Encryption    string `json:"encryption"`
	Status        string `json:"status"`
}

// NewHostService constructs HostService.
func NewHostService(store storage.Store) *HostService {
	return &HostService{store: store}
}

// Generate creates a host with a random password, for targets configured to
// require one.
func (s *HostService) Generate(ctx context.Context, req HostRequest) (*model.Host, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: host name is required", ErrInvalidInput)
	}
	if req.Password == "" {
		generated, err := crypto.GenerateString(hostPasswordBytes)
		if err != nil {
			return nil, err
		}
		req.Password = generated
	}
	return s.Upsert(ctx, req)
}

// Upsert stores or updates a host. Without a key it updates the host already
// stored for the same address, or creates a new one.
func (s *HostService) Upsert(ctx context.Context, req HostRequest) (*model.Host, error) {
	if strings.TrimSpace(req.Address) == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	address := gntp.Address(strings.TrimSpace(req.Address))

	host, err := s.existing(ctx, req.Key, address)
	if err != nil {
		return nil, err
	}
	// Keys appear in admin URL paths, so generated ones stay URL safe.
	if host.Key == "" {
		host.Key = uuid.NewString()
	}

	host.Name = firstNonEmpty(req.Name, host.Name, address)
	host.Address = address
	if req.Password != "" {
		host.Password = req.Password
	}
	host.HashAlgorithm = strings.ToUpper(firstNonEmpty(req.HashAlgorithm, host.HashAlgorithm, string(gntp.HashSHA256)))
	host.Encryption = strings.ToUpper(firstNonEmpty(req.Encryption, host.Encryption, string(gntp.EncryptionNone)))
	status, err := normalizeStatus(firstNonEmpty(req.Status, host.Status))
	if err != nil {
		return nil, err
	}
	host.Status = status

	if err := HostSecurity(host).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.UpsertHost(ctx, host); err != nil {
		return nil, err
	}
	return host, nil
}

func (s *HostService) existing(ctx context.Context, key, address string) (*model.Host, error) {
	var (
		host *model.Host
		err  error
	)
	if key != "" {
		host, err = s.store.GetHost(ctx, key)
	} else {
		host, err = s.store.GetHostByAddress(ctx, address)
	}
	switch {
	case err == nil:
		return host, nil
	case errors.Is(err, storage.ErrNotFound):
		return &model.Host{Key: key}, nil
	default:
		return nil, err
	}
}

// List returns all hosts.
func (s *HostService) List(ctx context.Context) ([]*model.Host, error) {
	return s.store.ListHosts(ctx)
}

// ListViews returns masked host views.
func (s *HostService) ListViews(ctx context.Context) ([]*model.HostView, error) {
	hosts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*model.HostView, 0, len(hosts))
	for _, host := range hosts {
		views = append(views, toView(host))
	}
	return views, nil
}

// Get returns host by key.
func (s *HostService) Get(ctx context.Context, key string) (*model.Host, error) {
	return s.store.GetHost(ctx, key)
}

// Lookup returns the host stored for address, if any.
func (s *HostService) Lookup(ctx context.Context, address string) (*model.Host, error) {
	return s.store.GetHostByAddress(ctx, gntp.Address(address))
}

// UpdateStatus toggles host activation.
func (s *HostService) UpdateStatus(ctx context.Context, key, status string) (*model.Host, error) {
	host, err := s.store.GetHost(ctx, key)
	if err != nil {
		return nil, err
	}
	host.Status, err = normalizeStatus(status)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertHost(ctx, host); err != nil {
		return nil, err
	}
	return host, nil
}

// HostSecurity returns the message security used to reach host.
func HostSecurity(host *model.Host) gntp.Security {
	return gntp.Security{
		Password:   host.Password,
		Hash:       gntp.HashAlgorithm(strings.ToUpper(host.HashAlgorithm)),
		Encryption: gntp.EncryptionAlgorithm(strings.ToUpper(host.Encryption)),
	}
}

func normalizeStatus(status string) (string, error) {
	switch s := strings.ToUpper(strings.TrimSpace(status)); s {
	case "", model.HostStatusActive:
		return model.HostStatusActive, nil
	case model.HostStatusStop:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func toView(host *model.Host) *model.HostView {
	if host == nil {
		return nil
	}
	return &model.HostView{
		Key:           host.Key,
		Name:          host.Name,
		Address:       host.Address,
		Password:      maskValue(host.Password),
		HashAlgorithm: host.HashAlgorithm,
		Encryption:    host.Encryption,
		Status:        host.Status,
		UpdatedAt:     host.UpdatedAt,
	}
}

func maskValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-2)
}
