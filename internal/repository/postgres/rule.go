package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avc/laundry-loyalty/internal/domain"
	"github.com/jackc/pgx/v5"
)

const ruleColumns = `id, name, description, trigger_type, config, reward, is_active, created_at, updated_at`

// RuleRepository реализует domain.RuleRepository
type RuleRepository struct {
	db DBTX
}

// NewRuleRepository создает новый RuleRepository
func NewRuleRepository(db DBTX) *RuleRepository {
	return &RuleRepository{db: db}
}

// ListRules получает правила лояльности. Некорректная конфигурация возвращается ошибкой.
func (r *RuleRepository) ListRules(ctx context.Context, activeOnly bool) ([]*domain.LoyaltyRule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ruleColumns+`
		 FROM loyalty_rules
		 WHERE is_active OR NOT $1
		 ORDER BY id`,
		activeOnly,
	)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to list loyalty rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.LoyaltyRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating loyalty rules: %w", err)
	}

	return rules, nil
}

// GetRule получает правило по идентификатору
func (r *RuleRepository) GetRule(ctx context.Context, id int64) (*domain.LoyaltyRule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM loyalty_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}

	return rule, nil
}

// GetRuleByName получает правило по имени
func (r *RuleRepository) GetRuleByName(ctx context.Context, name string) (*domain.LoyaltyRule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM loyalty_rules WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}

	return rule, nil
}

// CreateRule сохраняет новое правило
func (r *RuleRepository) CreateRule(ctx context.Context, rule *domain.LoyaltyRule) error {
	config, err := rule.ConfigJSON()
	if err != nil {
		return fmt.Errorf("repository: failed to encode rule %q config: %w", rule.Name, err)
	}
	reward, err := rule.RewardJSON()
	if err != nil {
		return fmt.Errorf("repository: failed to encode rule %q reward: %w", rule.Name, err)
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO loyalty_rules (name, description, trigger_type, config, reward, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		rule.Name, rule.Description, string(rule.TriggerType()), config, reward, rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		if isPgCode(err, codeUniqueViolation) {
			return domain.ErrRuleExists
		}
		return fmt.Errorf("repository: failed to create rule %q: %w", rule.Name, err)
	}

	return nil
}

// SetRuleActive включает или выключает правило
func (r *RuleRepository) SetRuleActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.Exec(ctx,
		`UPDATE loyalty_rules SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		id, active,
	)

	if err != nil {
		return fmt.Errorf("repository: failed to update rule %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}

func scanRule(row rowScanner) (*domain.LoyaltyRule, error) {
	var (
		id                   int64
		name, description    string
		triggerType          string
		config, reward       []byte
		active               bool
		createdAt, updatedAt time.Time
	)

	err := row.Scan(&id, &name, &description, &triggerType, &config, &reward, &active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("repository: failed to scan loyalty rule: %w", err)
	}

	rule, err := domain.ParseRule(name, description, domain.TriggerType(triggerType), config, reward, active)
	if err != nil {
		return nil, fmt.Errorf("repository: rule %d %q has invalid configuration: %w", id, name, err)
	}

	rule.ID = id
	rule.CreatedAt = createdAt
	rule.UpdatedAt = updatedAt
	return rule, nil
}
