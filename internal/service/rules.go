package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/avc/laundry-loyalty/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CreateRuleRequest данные нового правила лояльности
type CreateRuleRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	TriggerType domain.TriggerType `json:"trigger_type"`
	Config      json.RawMessage    `json:"config"`
	Reward      json.RawMessage    `json:"reward"`
	// IsActive по умолчанию true
	IsActive *bool `json:"is_active"`
}

// RuleService управляет правилами лояльности
type RuleService struct {
	store  domain.Store
	logger *zap.Logger
}

// NewRuleService создает новый RuleService
func NewRuleService(store domain.Store, logger *zap.Logger) *RuleService {
	return &RuleService{store: store, logger: logger}
}

// CreateRule проверяет и сохраняет новое правило
func (s *RuleService) CreateRule(ctx context.Context, req CreateRuleRequest) (*domain.LoyaltyRule, error) {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	rule, err := domain.ParseRule(req.Name, req.Description, req.TriggerType, req.Config, req.Reward, active)
	if err != nil {
		return nil, err
	}

	if err := s.store.Rules().CreateRule(ctx, rule); err != nil {
		return nil, s.wrap(err, "failed to create rule %q", rule.Name)
	}

	s.logger.Info("loyalty rule created",
		zap.Int64("rule_id", rule.ID),
		zap.String("name", rule.Name),
		zap.String("trigger", string(rule.TriggerType())),
	)
	return rule, nil
}

// SetRuleActive включает или выключает правило
func (s *RuleService) SetRuleActive(ctx context.Context, id int64, active bool) (*domain.LoyaltyRule, error) {
	if err := s.store.Rules().SetRuleActive(ctx, id, active); err != nil {
		return nil, s.wrap(err, "failed to update rule %d", id)
	}

	rule, err := s.store.Rules().GetRule(ctx, id)
	if err != nil {
		return nil, s.wrap(err, "failed to get rule %d", id)
	}

	return rule, nil
}

// ListRules получает правила лояльности
func (s *RuleService) ListRules(ctx context.Context, activeOnly bool) ([]*domain.LoyaltyRule, error) {
	rules, err := s.store.Rules().ListRules(ctx, activeOnly)
	if err != nil {
		return nil, s.wrap(err, "failed to list rules")
	}

	return rules, nil
}

func (s *RuleService) wrap(err error, format string, args ...any) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("rule service: "+format+": %w", append(args, err)...)
}

// catalogFile файл шаблонов правил
type catalogFile struct {
	Rules []catalogRule `yaml:"rules"`
}

type catalogRule struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	TriggerType string         `yaml:"trigger_type"`
	Config      map[string]any `yaml:"config"`
	Reward      map[string]any `yaml:"reward"`
	Active      *bool          `yaml:"active"`
}

// RuleCatalog загружает шаблоны правил из YAML-файла
type RuleCatalog struct {
	store  domain.Store
	logger *zap.Logger
}

// NewRuleCatalog создает новый RuleCatalog
func NewRuleCatalog(store domain.Store, logger *zap.Logger) *RuleCatalog {
	return &RuleCatalog{store: store, logger: logger}
}

// Load читает файл path и создает отсутствующие правила.
// Файл проверяется целиком до записи; правила с существующими именами пропускаются.
// Возвращает число созданных правил.
func (c *RuleCatalog) Load(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("rule catalog: reading %s: %w", path, err)
	}

	rules, err := ParseRuleCatalog(data)
	if err != nil {
		return 0, fmt.Errorf("rule catalog: %s: %w", path, err)
	}

	created := 0
	err = c.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		for _, rule := range rules {
			_, err := tx.Rules().GetRuleByName(ctx, rule.Name)
			if err == nil {
				c.logger.Debug("loyalty rule already exists, skipping", zap.String("name", rule.Name))
				continue
			}
			if !errors.Is(err, domain.ErrRuleNotFound) {
				return err
			}

			if err := tx.Rules().CreateRule(ctx, rule); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rule catalog: failed to load %s: %w", path, err)
	}

	c.logger.Info("loyalty rule catalog loaded",
		zap.String("path", path),
		zap.Int("rules", len(rules)),
		zap.Int("created", created),
	)
	return created, nil
}

// ParseRuleCatalog разбирает и проверяет YAML-каталог правил
func ParseRuleCatalog(data []byte) ([]*domain.LoyaltyRule, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Rules))
	rules := make([]*domain.LoyaltyRule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		config, err := json.Marshal(entry.Config)
		if err != nil {
			return nil, fmt.Errorf("rule #%d %q: encoding config: %w", i+1, entry.Name, err)
		}
		reward, err := json.Marshal(entry.Reward)
		if err != nil {
			return nil, fmt.Errorf("rule #%d %q: encoding reward: %w", i+1, entry.Name, err)
		}

		active := true
		if entry.Active != nil {
			active = *entry.Active
		}

		rule, err := domain.ParseRule(entry.Name, entry.Description, domain.TriggerType(entry.TriggerType), config, reward, active)
		if err != nil {
			return nil, fmt.Errorf("rule #%d %q: %w", i+1, entry.Name, err)
		}

		if _, dup := seen[rule.Name]; dup {
			return nil, fmt.Errorf("rule #%d: duplicate name %q", i+1, rule.Name)
		}
		seen[rule.Name] = struct{}{}
		rules = append(rules, rule)
	}

	return rules, nil
}
