package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
)

// ProfileSource supplies the activity profiles to report for a user.
type ProfileSource interface {
	ProfilesForUser(ctx context.Context, userName string) ([]domain.Profile, error)
}

// StaticProfileSource returns the same profile set for every user. It
// stands in for a real profile backend in demo deployments.
type StaticProfileSource struct {
	Profiles []domain.Profile
}

var _ ProfileSource = (*StaticProfileSource)(nil)

func (s *StaticProfileSource) ProfilesForUser(ctx context.Context, userName string) ([]domain.Profile, error) {
	return s.Profiles, nil
}

// PublishRequest asks the publisher to report the user's profiles to the
// named partner using the partner token held for that user.
type PublishRequest struct {
	UserName  string
	PartnerID string
}

// ProfilePublisher pushes profile reports to partners from a background
// worker. Publishing is fire-and-forget: delivery failures are logged
// and dropped rather than retried, because the partner re-requests
// profiles on its own schedule.
type ProfilePublisher struct {
	manager  *PartnerTokenManager
	profiles ProfileSource
	endpoint string
	client   *http.Client
	logger   *zap.Logger

	queue chan PublishRequest
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewProfilePublisher(
	manager *PartnerTokenManager,
	profiles ProfileSource,
	endpoint string,
	queueSize int,
	logger *zap.Logger,
) *ProfilePublisher {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &ProfilePublisher{
		manager:  manager,
		profiles: profiles,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		queue:    make(chan PublishRequest, queueSize),
		stop:     make(chan struct{}),
	}
}

// Start launches the delivery worker. Safe to call once; wire it to the
// application lifecycle.
func (p *ProfilePublisher) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop drains the worker and blocks until in-flight deliveries finish.
func (p *ProfilePublisher) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Enqueue schedules a report for delivery. It fails fast when the queue
// is full so callers never block on a slow partner.
func (p *ProfilePublisher) Enqueue(req PublishRequest) error {
	select {
	case p.queue <- req:
		return nil
	case <-p.stop:
		return fmt.Errorf("publisher stopped")
	default:
		return fmt.Errorf("publish queue full")
	}
}

func (p *ProfilePublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.queue:
			p.deliver(req)
		case <-p.stop:
			// Drain what was accepted before shutdown.
			for {
				select {
				case req := <-p.queue:
					p.deliver(req)
				default:
					return
				}
			}
		}
	}
}

func (p *ProfilePublisher) deliver(req PublishRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.publish(ctx, req); err != nil {
		p.log().Warn("profile report delivery failed",
			zap.String("user_name", req.UserName),
			zap.String("partner_id", req.PartnerID),
			zap.Error(err))
		return
	}
	p.log().Info("profile report delivered",
		zap.String("user_name", req.UserName),
		zap.String("partner_id", req.PartnerID))
}

func (p *ProfilePublisher) publish(ctx context.Context, req PublishRequest) error {
	token, err := p.manager.GetAccessToken(ctx, req.UserName, req.PartnerID)
	if err != nil {
		return fmt.Errorf("partner token: %w", err)
	}

	profiles, err := p.profiles.ProfilesForUser(ctx, req.UserName)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	report := domain.ProfileReport{
		ReportID: uuid.NewString(),
		Profiles: profiles,
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token.Value)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post report: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *ProfilePublisher) log() *zap.Logger {
	if p != nil && p.logger != nil {
		return p.logger
	}
	return zap.L()
}
