package service

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"ghostauth/internal/aura"
	"ghostauth/internal/profiling"
	telemetry "ghostauth/internal/telemetry/models"
	"ghostauth/internal/trust/metrics"
	"ghostauth/internal/trust/models"
	"ghostauth/internal/trust/service/mocks"
	dErrors "ghostauth/pkg/domain-errors"
	"ghostauth/pkg/platform/audit"
	"ghostauth/pkg/platform/sentinel"
	"ghostauth/pkg/requestcontext"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testUser = "user-7"
	seed     = 9
)

type ServiceSuite struct {
	suite.Suite
	ctrl               *gomock.Controller
	mockProfiles       *mocks.MockProfileStore
	mockSessions       *mocks.MockSessionLog
	mockAuditPublisher *mocks.MockAuditPublisher
	service            *Service

	ctx     context.Context
	now     time.Time
	request models.ScoreRequest
	digest  string

	mu     sync.Mutex
	events []audit.Event
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockProfiles = mocks.NewMockProfileStore(s.ctrl)
	s.mockSessions = mocks.NewMockSessionLog(s.ctrl)
	s.mockAuditPublisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.events = nil
	s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Event) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.events = append(s.events, e)
			return nil
		}).AnyTimes()

	svc, err := New(s.mockProfiles, s.mockSessions,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.mockAuditPublisher),
		WithMetrics(metrics.NewWith(prometheus.NewRegistry())),
		WithGenerator(aura.NewGenerator(aura.NewSeededSource(seed))),
	)
	s.Require().NoError(err)
	s.service = svc

	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.request = models.ScoreRequest{
		UserID:    testUser,
		SessionID: "session-1",
		Device:    models.Device{IP: "192.0.2.10", MacID: "aa:bb:cc:dd:ee:ff", DeviceUUID: "dev-1", Label: "Android 14"},
		Events:    sessionEvents(),
	}
	s.digest = expectedDigest(s.T(), s.request.Events)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func sessionEvents() []telemetry.Event {
	base := time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC)
	pressure, screen, duration := 0.42, "home", 250.0
	return []telemetry.Event{
		{Type: telemetry.EventAppOpen, Timestamp: base, Details: telemetry.AppOpenDetails{}},
		{Type: telemetry.EventTap, Timestamp: base.Add(1500 * time.Millisecond), Details: telemetry.TapDetails{Pressure: &pressure, Screen: &screen}},
		{Type: telemetry.EventHover, Timestamp: base.Add(3 * time.Second), Details: telemetry.HoverDetails{Duration: &duration}},
	}
}

// expectedDigest replays the first generation of a generator seeded like the
// service's.
func expectedDigest(t *testing.T, events []telemetry.Event) string {
	t.Helper()
	fv, err := profiling.Extract(events)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	d, err := aura.NewGenerator(aura.NewSeededSource(seed)).Generate(fv)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return d.String()
}

// flipBits returns digest with its first n bits inverted.
func flipBits(digest string, n int) string {
	raw, _ := hex.DecodeString(digest)
	for i := range n {
		raw[i/8] ^= 1 << (i % 8)
	}
	return hex.EncodeToString(raw)
}

func (s *ServiceSuite) profile(baseline string) *models.Profile {
	return &models.Profile{UserID: testUser, BaselineAuraHash: baseline}
}

func (s *ServiceSuite) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestColdStart() {
	var created *models.Profile
	var recorded *models.SessionRecord
	s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(nil, sentinel.ErrNotFound)
	s.mockProfiles.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *models.Profile) error {
			created = p
			return nil
		})
	s.mockSessions.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r *models.SessionRecord) error {
			recorded = r
			return nil
		})

	res, err := s.service.Score(s.ctx, s.request)
	s.Require().NoError(err)

	s.Equal(ColdStartScore, res.TrustScore)
	s.True(res.ColdStart)
	s.Equal(s.digest, res.AuraHash)
	s.Require().NotNil(created)
	s.Equal(s.digest, created.BaselineAuraHash)

	s.Require().NotNil(recorded)
	s.Equal(res.RecordID, recorded.ID)
	s.Equal(100, recorded.TrustScore)
	s.True(recorded.ColdStart)
	s.Equal(s.now, recorded.Timestamp)
	s.Equal("aa:bb:cc:dd:ee:ff", recorded.MacID)
	s.Equal("Android 14", recorded.DeviceLabel)
	s.InDelta(1.5, recorded.Features.Hesitation, 1e-9)
	s.Contains(s.actions(), string(audit.EventColdStart))
}

func (s *ServiceSuite) TestWarmSessions() {
	s.Run("score above threshold adopts the new digest", func() {
		baseline := flipBits(s.digest, 26) // round(89.84) = 90
		s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(s.profile(baseline), nil)
		s.mockProfiles.EXPECT().CompareAndSwap(gomock.Any(), testUser, baseline, s.digest).Return(true, nil)
		s.mockSessions.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

		res, err := s.service.Score(s.ctx, s.request)
		s.Require().NoError(err)
		s.Equal(90, res.TrustScore)
		s.True(res.Adapted)
		s.False(res.ColdStart)
		s.Contains(s.actions(), string(audit.EventBaselineAdapted))
	})
}

func (s *ServiceSuite) TestLowScoreKeepsBaseline() {
	baseline := flipBits(s.digest, 77) // round(69.92) = 70
	s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(s.profile(baseline), nil)
	s.mockSessions.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r *models.SessionRecord) error {
			s.Equal(70, r.TrustScore)
			s.False(r.Adapted)
			return nil
		})

	res, err := s.service.Score(s.ctx, s.request)
	s.Require().NoError(err)
	s.Equal(70, res.TrustScore)
	s.False(res.Adapted)
	s.NotContains(s.actions(), string(audit.EventBaselineAdapted))
}

func (s *ServiceSuite) TestAdaptThresholdIsExclusive() {
	baseline := flipBits(s.digest, 38) // round(85.16) = 85
	s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(s.profile(baseline), nil)
	s.mockSessions.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	res, err := s.service.Score(s.ctx, s.request)
	s.Require().NoError(err)
	s.Equal(85, res.TrustScore)
	s.False(res.Adapted)
}

func (s *ServiceSuite) TestVeryLowScoreRaisesLowTrust() {
	s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(s.profile(flipBits(s.digest, 200)), nil)
	s.mockSessions.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	res, err := s.service.Score(s.ctx, s.request)
	s.Require().NoError(err)
	s.Equal(22, res.TrustScore)
	s.Contains(s.actions(), string(audit.EventLowTrust))
}

func (s *ServiceSuite) TestLostCreateRaceRecomputesAgainstWinner() {
	winner := flipBits(s.digest, 77)
	gomock.InOrder(
		s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(nil, sentinel.ErrNotFound),
		s.mockProfiles.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict),
		s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(s.profile(winner), nil),
	)
	s.mockSessions.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	res, err := s.service.Score(s.ctx, s.request)
	s.Require().NoError(err)
	s.False(res.ColdStart)
	s.Equal(70, res.TrustScore)
}

func (s *ServiceSuite) TestLostSwapRaceExhaustsIntoConflict() {
	baseline := flipBits(s.digest, 1)
	s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(s.profile(baseline), nil).Times(maxScoreAttempts)
	s.mockProfiles.EXPECT().CompareAndSwap(gomock.Any(), testUser, baseline, s.digest).Return(false, nil).Times(maxScoreAttempts)

	_, err := s.service.Score(s.ctx, s.request)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(s.actions(), string(audit.EventScoreConflict))
}

func (s *ServiceSuite) TestValidation() {
	s.Run("empty batch", func() {
		req := s.request
		req.Events = nil
		_, err := s.service.Score(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing identity", func() {
		req := s.request
		req.Device.MacID = " "
		_, err := s.service.Score(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("corrupt stored baseline", func() {
		s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(s.profile("not-hex"), nil)
		_, err := s.service.Score(s.ctx, s.request)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestStorageFailuresAreInternal() {
	boom := errors.New("connection reset")

	s.Run("profile read", func() {
		s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(nil, boom)
		_, err := s.service.Score(s.ctx, s.request)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorIs(err, boom)
	})

	s.Run("profile create", func() {
		s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(nil, sentinel.ErrNotFound)
		s.mockProfiles.EXPECT().Create(gomock.Any(), gomock.Any()).Return(boom)
		_, err := s.service.Score(s.ctx, s.request)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("session append after baseline write", func() {
		s.mockProfiles.EXPECT().Get(gomock.Any(), testUser).Return(nil, sentinel.ErrNotFound)
		s.mockProfiles.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockSessions.EXPECT().Append(gomock.Any(), gomock.Any()).Return(boom)
		_, err := s.service.Score(s.ctx, s.request)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestNewRequiresStores() {
	_, err := New(nil, s.mockSessions)
	s.Error(err)
	_, err = New(s.mockProfiles, nil)
	s.Error(err)
}
