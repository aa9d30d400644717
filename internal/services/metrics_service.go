package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"mailwatch/internal/repository"
	"mailwatch/pkg/logger"
)

// Engagement score weights and alert thresholds.
const (
	openRateWeight  = 0.3
	clickRateWeight = 0.7

	bounceRateAlertThreshold    = 5.0
	complaintRateAlertThreshold = 0.1
	deliveryRateAlertThreshold  = 95.0

	trendThresholdPoints = 2.0

	dashboardCacheTTL = 30 * time.Second
)

type Window struct {
	From time.Time
	To   time.Time
}

type Overview struct {
	Sent          int64   `json:"sent"`
	Delivered     int64   `json:"delivered"`
	Opened        int64   `json:"opened"`
	Clicked       int64   `json:"clicked"`
	Bounced       int64   `json:"bounced"`
	Complained    int64   `json:"complained"`
	DeliveryRate  float64 `json:"delivery_rate"`
	OpenRate      float64 `json:"open_rate"`
	ClickRate     float64 `json:"click_rate"`
	BounceRate    float64 `json:"bounce_rate"`
	ComplaintRate float64 `json:"complaint_rate"`
}

type DailyPoint struct {
	Day        time.Time `json:"day"`
	Sent       int64     `json:"sent"`
	Delivered  int64     `json:"delivered"`
	Opened     int64     `json:"opened"`
	Clicked    int64     `json:"clicked"`
	Bounced    int64     `json:"bounced"`
	Engagement float64   `json:"engagement"`
}

type GeoPoint struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	Opens   int64  `json:"opens"`
	Clicks  int64  `json:"clicks"`
}

type Alert struct {
	Name      string  `json:"name"`
	Severity  string  `json:"severity"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

type TemplateScore struct {
	TemplateID string  `json:"template_id"`
	Sent       int64   `json:"sent"`
	OpenRate   float64 `json:"open_rate"`
	ClickRate  float64 `json:"click_rate"`
	Score      float64 `json:"score"`
}

type ProviderStats struct {
	Provider     string  `json:"provider"`
	Sent         int64   `json:"sent"`
	DeliveryRate float64 `json:"delivery_rate"`
	BounceRate   float64 `json:"bounce_rate"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
}

type DashboardReport struct {
	Window        Window          `json:"window"`
	Overview      Overview        `json:"overview"`
	Timeseries    []DailyPoint    `json:"timeseries"`
	Geo           []GeoPoint      `json:"geo"`
	Alerts        []Alert         `json:"alerts"`
	TopPerformers []TemplateScore `json:"top_performers"`
	Providers     []ProviderStats `json:"providers"`
	Trend         string          `json:"trend"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// MetricsService aggregates the event stream into dashboard statistics. All
// branches run in parallel under one deadline; the dashboard is all or
// nothing, a timeout on the join fails the whole aggregation.
type MetricsService struct {
	logRepo   repository.LogRepository
	eventRepo repository.EventRepository
	cache     *goredis.Client
	timeout   time.Duration
	log       *logger.Logger
}

func NewMetricsService(logRepo repository.LogRepository, eventRepo repository.EventRepository, cache *goredis.Client, log *logger.Logger) *MetricsService {
	return &MetricsService{
		logRepo:   logRepo,
		eventRepo: eventRepo,
		cache:     cache,
		timeout:   10 * time.Second,
		log:       log,
	}
}

func (s *MetricsService) Dashboard(ctx context.Context, w Window) (*DashboardReport, error) {
	cacheKey := fmt.Sprintf("metrics:dashboard:%d:%d", w.From.Unix(), w.To.Unix())
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var report DashboardReport
			if err := json.Unmarshal([]byte(data), &report); err == nil {
				return &report, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report := &DashboardReport{Window: w}
	g, gctx := errgroup.WithContext(ctx)

	// Each branch writes a distinct field, so the join is the only
	// synchronization point.
	g.Go(func() error {
		counts, err := s.logRepo.CountsByStatus(gctx, w.From, w.To)
		if err != nil {
			return fmt.Errorf("overview: %w", err)
		}
		report.Overview = buildOverview(counts)
		return nil
	})
	g.Go(func() error {
		rows, err := s.logRepo.DailyCounts(gctx, w.From, w.To)
		if err != nil {
			return fmt.Errorf("timeseries: %w", err)
		}
		report.Timeseries = buildTimeseries(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := s.eventRepo.GeoCounts(gctx, w.From, w.To)
		if err != nil {
			return fmt.Errorf("geo: %w", err)
		}
		report.Geo = buildGeo(rows)
		return nil
	})
	g.Go(func() error {
		counts, err := s.logRepo.CountsByStatus(gctx, w.From, w.To)
		if err != nil {
			return fmt.Errorf("alerts: %w", err)
		}
		report.Alerts = evaluateAlerts(buildOverview(counts))
		return nil
	})
	g.Go(func() error {
		rows, err := s.logRepo.TemplateEngagement(gctx, w.From, w.To)
		if err != nil {
			return fmt.Errorf("top performers: %w", err)
		}
		report.TopPerformers = rankTemplates(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := s.logRepo.DomainCounts(gctx, w.From, w.To)
		if err != nil {
			return fmt.Errorf("providers: %w", err)
		}
		report.Providers = buildProviderStats(rows)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard aggregation failed: %w", err)
	}

	report.Trend = classifyTrend(report.Timeseries)
	report.GeneratedAt = time.Now().UTC()

	if s.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			s.cache.Set(ctx, cacheKey, data, dashboardCacheTTL)
		}
	}
	return report, nil
}

func buildOverview(c repository.StatusCounts) Overview {
	o := Overview{
		Sent:       c.Sent,
		Delivered:  c.Delivered,
		Opened:     c.Opened,
		Clicked:    c.Clicked,
		Bounced:    c.Bounced,
		Complained: c.Complained,
	}
	o.DeliveryRate = rate(c.Delivered, c.Sent)
	o.OpenRate = rate(c.Opened, c.Delivered)
	o.ClickRate = rate(c.Clicked, c.Delivered)
	o.BounceRate = rate(c.Bounced, c.Sent)
	o.ComplaintRate = rate(c.Complained, c.Sent)
	return o
}

func buildTimeseries(rows []repository.DailyCount) []DailyPoint {
	points := make([]DailyPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, DailyPoint{
			Day:        r.Day,
			Sent:       r.Sent,
			Delivered:  r.Delivered,
			Opened:     r.Opened,
			Clicked:    r.Clicked,
			Bounced:    r.Bounced,
			Engagement: engagementScore(rate(r.Opened, r.Delivered), rate(r.Clicked, r.Delivered)),
		})
	}
	return points
}

func buildGeo(rows []repository.GeoCount) []GeoPoint {
	points := make([]GeoPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, GeoPoint{
			Country: r.Country,
			Region:  r.Region,
			Opens:   r.Opens,
			Clicks:  r.Clicks,
		})
	}
	return points
}

func evaluateAlerts(o Overview) []Alert {
	alerts := []Alert{}
	if o.Sent == 0 {
		return alerts
	}
	if o.BounceRate > bounceRateAlertThreshold {
		alerts = append(alerts, Alert{
			Name:      "high_bounce_rate",
			Severity:  "critical",
			Value:     o.BounceRate,
			Threshold: bounceRateAlertThreshold,
			Message:   fmt.Sprintf("bounce rate %.2f%% exceeds %.1f%%", o.BounceRate, bounceRateAlertThreshold),
		})
	}
	if o.ComplaintRate > complaintRateAlertThreshold {
		alerts = append(alerts, Alert{
			Name:      "high_complaint_rate",
			Severity:  "critical",
			Value:     o.ComplaintRate,
			Threshold: complaintRateAlertThreshold,
			Message:   fmt.Sprintf("complaint rate %.3f%% exceeds %.1f%%", o.ComplaintRate, complaintRateAlertThreshold),
		})
	}
	if o.DeliveryRate < deliveryRateAlertThreshold {
		alerts = append(alerts, Alert{
			Name:      "low_delivery_rate",
			Severity:  "warning",
			Value:     o.DeliveryRate,
			Threshold: deliveryRateAlertThreshold,
			Message:   fmt.Sprintf("delivery rate %.2f%% is below %.1f%%", o.DeliveryRate, deliveryRateAlertThreshold),
		})
	}
	return alerts
}

func rankTemplates(rows []repository.TemplateEngagement) []TemplateScore {
	scores := make([]TemplateScore, 0, len(rows))
	for _, r := range rows {
		if r.Sent == 0 {
			continue
		}
		openRate := rate(r.Opened, r.Sent)
		clickRate := rate(r.Clicked, r.Sent)
		scores = append(scores, TemplateScore{
			TemplateID: r.TemplateID.String(),
			Sent:       r.Sent,
			OpenRate:   openRate,
			ClickRate:  clickRate,
			Score:      engagementScore(openRate, clickRate),
		})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if len(scores) > 10 {
		scores = scores[:10]
	}
	return scores
}

func buildProviderStats(rows []repository.DomainCount) []ProviderStats {
	byProvider := make(map[string]*repository.DomainCount)
	for _, r := range rows {
		name := providerForDomain(r.Domain)
		agg, ok := byProvider[name]
		if !ok {
			agg = &repository.DomainCount{Domain: name}
			byProvider[name] = agg
		}
		agg.Sent += r.Sent
		agg.Delivered += r.Delivered
		agg.Bounced += r.Bounced
		agg.Opened += r.Opened
		agg.Clicked += r.Clicked
	}

	stats := make([]ProviderStats, 0, len(byProvider))
	for name, agg := range byProvider {
		stats = append(stats, ProviderStats{
			Provider:     name,
			Sent:         agg.Sent,
			DeliveryRate: rate(agg.Delivered, agg.Sent),
			BounceRate:   rate(agg.Bounced, agg.Sent),
			OpenRate:     rate(agg.Opened, agg.Delivered),
			ClickRate:    rate(agg.Clicked, agg.Delivered),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Sent > stats[j].Sent })
	return stats
}

func providerForDomain(domain string) string {
	switch strings.ToLower(domain) {
	case "gmail.com", "googlemail.com":
		return "Gmail"
	case "outlook.com", "hotmail.com", "live.com", "msn.com":
		return "Outlook"
	case "yahoo.com", "ymail.com":
		return "Yahoo"
	case "icloud.com", "me.com":
		return "Apple"
	default:
		return "Other"
	}
}

// classifyTrend compares the engagement average of the most recent third of
// the window against the earliest third.
func classifyTrend(points []DailyPoint) string {
	if len(points) < 3 {
		return "stable"
	}
	third := len(points) / 3
	earliest := averageEngagement(points[:third])
	recent := averageEngagement(points[len(points)-third:])

	switch {
	case recent-earliest > trendThresholdPoints:
		return "improving"
	case earliest-recent > trendThresholdPoints:
		return "declining"
	default:
		return "stable"
	}
}

func averageEngagement(points []DailyPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Engagement
	}
	return sum / float64(len(points))
}

func engagementScore(openRate, clickRate float64) float64 {
	return openRateWeight*openRate + clickRateWeight*clickRate
}

func rate(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
