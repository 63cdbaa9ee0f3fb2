package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bark-labs/gntp-notify/internal/config"
	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/bark-labs/gntp-notify/internal/growlclient"
	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const broadcastConcurrency = 8

// NotifyService turns NotifyRequests into GNTP sessions: it registers the
// application with a target on first use, sends the notification and
// records a delivery log entry.
type NotifyService struct {
	cfg       config.GNTP
	store     storage.Store
	transport gntp.Transport
	log       logrus.FieldLogger

	mu      sync.Mutex
	clients map[string]*growlclient.Client
}

// NewNotifyService builds NotifyService. store may be nil, in which case no
// delivery log is kept and remote sends use the configured credentials.
func NewNotifyService(cfg config.GNTP, store storage.Store, transport gntp.Transport, log logrus.FieldLogger) *NotifyService {
	return &NotifyService{
		cfg:       cfg,
		store:     store,
		transport: transport,
		log:       log.WithField("pkg", "service"),
		clients:   map[string]*growlclient.Client{},
	}
}

// Send delivers req to the configured target, or to req.Host when set.
// Credentials of a stored host with the same address take precedence over
// the configured ones.
func (s *NotifyService) Send(ctx context.Context, req model.NotifyRequest) (model.NotifyResult, error) {
	n, appIcon, err := s.prepare(req)
	if err != nil {
		return model.NotifyResult{}, err
	}
	sec := s.cfg.Security()
	if req.Host != "" && s.store != nil {
		host, err := s.store.GetHostByAddress(ctx, gntp.Address(req.Host))
		switch {
		case err == nil:
			sec = HostSecurity(host)
		case !errors.Is(err, storage.ErrNotFound):
			return model.NotifyResult{}, err
		}
	}
	return s.deliver(ctx, req.Host, sec, appIcon, n)
}

// Broadcast delivers req to every ACTIVE stored host, or to req.HostKeys
// when given, concurrently. Per-host failures are reported in the results
// and do not fail the call.
func (s *NotifyService) Broadcast(ctx context.Context, req model.NotifyRequest) (model.NotifySummary, []model.NotifyResult, error) {
	n, appIcon, err := s.prepare(req)
	if err != nil {
		return model.NotifySummary{}, nil, err
	}
	if s.store == nil {
		return model.NotifySummary{}, nil, ErrNoTargets
	}
	hosts, results := s.pickHosts(ctx, req.HostKeys)
	if len(hosts) == 0 {
		return model.NotifySummary{}, results, ErrNoTargets
	}

	var (
		mu         sync.Mutex
		successNum int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastConcurrency)
	for _, host := range hosts {
		g.Go(func() error {
			res, err := s.deliver(gctx, host.Address, HostSecurity(host), appIcon, n)
			if res.Host == "" {
				res = model.NotifyResult{Host: host.Address, Remote: true, Status: model.NotifyStatusFailed, Message: err.Error()}
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successNum++
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Host < results[j].Host })
	return model.NotifySummary{SendNum: len(hosts), SuccessNum: successNum}, results, nil
}

func (s *NotifyService) pickHosts(ctx context.Context, keys []string) ([]*model.Host, []model.NotifyResult) {
	if len(keys) == 0 {
		hosts, err := s.store.ListActiveHosts(ctx)
		if err != nil {
			return nil, []model.NotifyResult{{
				Status:  model.NotifyStatusFailed,
				Message: fmt.Sprintf("list hosts: %v", err),
			}}
		}
		return hosts, nil
	}
	var (
		hosts  []*model.Host
		failed []model.NotifyResult
	)
	for _, key := range keys {
		host, err := s.store.GetHost(ctx, key)
		if err != nil {
			failed = append(failed, model.NotifyResult{Host: key, Status: model.NotifyStatusFailed, Message: err.Error()})
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts, failed
}

// prepare validates req and builds the notification plus the application
// icon.
func (s *NotifyService) prepare(req model.NotifyRequest) (gntp.Notification, gntp.Icon, error) {
	if strings.TrimSpace(req.Message) == "" {
		return gntp.Notification{}, gntp.Icon{}, ErrEmptyMessage
	}
	priority, err := gntp.ParsePriority(req.Priority)
	if err != nil {
		return gntp.Notification{}, gntp.Icon{}, err
	}
	appIcon, err := ResolveIcon(firstNonEmpty(req.AppIcon, s.cfg.AppIcon))
	if err != nil {
		return gntp.Notification{}, gntp.Icon{}, err
	}
	icon, err := ResolveIcon(req.Icon)
	if err != nil {
		return gntp.Notification{}, gntp.Icon{}, err
	}

	opts := []gntp.NotificationOption{
		gntp.WithSticky(req.Sticky),
		gntp.WithPriority(priority),
		gntp.WithIcon(icon),
		gntp.WithID(req.ID),
		gntp.WithCoalescingID(req.CoalescingID),
	}
	if req.CallbackContext != "" {
		opts = append(opts, gntp.WithCallback(req.CallbackContext, req.CallbackContextType))
	}
	if req.CallbackTarget != "" {
		opts = append(opts, gntp.WithCallbackTarget(req.CallbackTarget))
	}
	name := firstNonEmpty(req.Notification, s.cfg.DefaultNotification)
	return gntp.NewNotification(name, req.Title, req.Message, opts...), appIcon, nil
}

// deliver registers with host when the session has not done so yet and
// sends n. An empty host means the configured target.
func (s *NotifyService) deliver(ctx context.Context, host string, sec gntp.Security, appIcon gntp.Icon, n gntp.Notification) (model.NotifyResult, error) {
	key := clientKey(appIcon, sec)
	client, err := s.client(key, appIcon, sec)
	if err != nil {
		return model.NotifyResult{}, err
	}
	remote := host != ""
	addr := client.Address()
	if remote {
		addr = gntp.Address(host)
	}
	result := model.NotifyResult{Host: addr, Remote: remote}

	if !client.RegisteredAt(addr) {
		if remote {
			err = client.RegisterRemote(ctx, host)
		} else {
			err = client.Register(ctx)
		}
		if err != nil {
			return s.fail(ctx, result, n, err)
		}
	}

	var res growlclient.Result
	if remote {
		res, err = client.NotifyRemote(ctx, host, n)
	} else {
		res, err = client.Notify(ctx, n)
	}
	result.NotificationID = res.NotificationID
	if err != nil {
		var derr *growlclient.DeliveryError
		if errors.As(err, &derr) && derr.Code == gntp.ErrCodeUnknownApplication {
			// The target forgot the registration; start over next time.
			s.forget(key)
		}
		return s.fail(ctx, result, n, err)
	}
	result.Status = model.NotifyStatusSuccess
	result.Message = res.Summary()
	s.appendLog(ctx, result, n)
	return result, nil
}

func (s *NotifyService) fail(ctx context.Context, result model.NotifyResult, n gntp.Notification, err error) (model.NotifyResult, error) {
	result.Status = model.NotifyStatusFailed
	result.Message = err.Error()
	s.log.WithError(err).WithField("host", result.Host).Warn("Notification was not sent")
	s.appendLog(ctx, result, n)
	return result, err
}

// client returns the cached session for an application icon and security
// pair, creating it on first use.
func (s *NotifyService) client(key string, appIcon gntp.Icon, sec gntp.Security) (*growlclient.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	app := gntp.NewApplication(s.cfg.Application, appIcon, s.cfg.Notifications...)
	c, err := growlclient.New(app, s.transport,
		growlclient.WithAddress(s.cfg.Address),
		growlclient.WithSecurity(sec),
		growlclient.WithLogger(s.log),
	)
	if err != nil {
		return nil, err
	}
	s.clients[key] = c
	return c, nil
}

func (s *NotifyService) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, key)
}

func clientKey(icon gntp.Icon, sec gntp.Security) string {
	iconKey := icon.URL
	if len(icon.Data) > 0 {
		iconKey = icon.ResourceID()
	}
	return strings.Join([]string{iconKey, sec.Password, string(sec.Hash), string(sec.Encryption)}, "\x00")
}

func (s *NotifyService) appendLog(ctx context.Context, result model.NotifyResult, n gntp.Notification) {
	if s.store == nil {
		return
	}
	entry := &model.NotifyLog{
		Host:           result.Host,
		Application:    s.cfg.Application,
		Notification:   n.Name,
		NotificationID: result.NotificationID,
		Title:          n.Title,
		Text:           n.Text,
		Priority:       int(n.Priority),
		Sticky:         n.Sticky,
		Result:         result.Message,
		Status:         result.Status,
	}
	if err := s.store.AppendNotifyLog(context.WithoutCancel(ctx), entry); err != nil {
		s.log.WithError(err).Warn("append notify log failed")
	}
}

// ResolveIcon turns an http(s) URL into a URL icon and anything else into
// the bytes of the file it names. Empty input is no icon.
func ResolveIcon(ref string) (gntp.Icon, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return gntp.Icon{}, nil
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return gntp.IconURL(ref), nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return gntp.Icon{}, fmt.Errorf("%w: icon: %v", ErrInvalidInput, err)
	}
	return gntp.IconData(data), nil
}
