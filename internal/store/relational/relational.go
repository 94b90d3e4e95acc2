// Package relational stores games in SQL tables through gorm. Postgres and
// SQLite are supported.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"brettonwoods/internal/domain"
	"brettonwoods/internal/store"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Store is a gorm backed game store
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the database, verifies the connection and migrates the
// schema
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("store dsn is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqlitePragmas
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve %s sql db handle: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}

	return New(db, logger), nil
}

// New wraps an already opened gorm handle. The schema must exist.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts the game row and its children
func (s *Store) Create(ctx context.Context, g *domain.Game) error {
	rows, err := rowsFromGame(g)
	if err != nil {
		return s.logError("game_store_encode_failed", err, "game_code", g.Code)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows.game).Error; err != nil {
			return err
		}
		return insertChildren(tx, rows)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCodeTaken
		}
		return s.logError("game_store_create_failed", err, "game_code", g.Code)
	}
	return nil
}

// Get loads a game
func (s *Store) Get(ctx context.Context, code string) (*domain.Game, error) {
	var game *domain.Game
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = loadGame(tx, code, false)
		return err
	}, readTxOptions(s.db.Dialector.Name()))
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return nil, err
		}
		return nil, s.logError("game_store_get_failed", err, "game_code", code)
	}
	return game, nil
}

// Update loads the game inside a transaction, locking its row on postgres,
// applies fn and writes the aggregate back
func (s *Store) Update(ctx context.Context, code string, fn store.UpdateFunc) (*domain.Game, error) {
	var game *domain.Game
	var fnErr error

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := loadGame(tx, code, tx.Dialector.Name() == DriverPostgres)
		if err != nil {
			return err
		}

		if err := fn(loaded); err != nil {
			fnErr = err
			return err
		}

		rows, err := rowsFromGame(loaded)
		if err != nil {
			return err
		}
		if err := tx.Save(&rows.game).Error; err != nil {
			return err
		}
		if err := syncPlayers(tx, rows); err != nil {
			return err
		}
		if err := deleteRounds(tx, code); err != nil {
			return err
		}
		if err := insertRounds(tx, rows); err != nil {
			return err
		}

		game = loaded
		return nil
	})
	if err != nil {
		if fnErr != nil || errors.Is(err, domain.ErrGameNotFound) {
			return nil, err
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return nil, s.logError("game_store_update_failed", err, "game_code", code)
	}
	return game, nil
}

// List loads every game ordered by creation time
func (s *Store) List(ctx context.Context) ([]*domain.Game, error) {
	var games []*domain.Game
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var codes []string
		if err := tx.Model(&gameModel{}).
			Order("created_at ASC").
			Pluck("code", &codes).Error; err != nil {
			return err
		}

		games = make([]*domain.Game, 0, len(codes))
		for _, code := range codes {
			g, err := loadGame(tx, code, false)
			if err != nil {
				return err
			}
			games = append(games, g)
		}
		return nil
	}, readTxOptions(s.db.Dialector.Name()))
	if err != nil {
		return nil, s.logError("game_store_list_failed", err)
	}
	return games, nil
}

// Delete removes a game and its children
func (s *Store) Delete(ctx context.Context, code string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteRounds(tx, code); err != nil {
			return err
		}
		if err := tx.Where("game_code = ?", code).Delete(&playerModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("code = ?", code).Delete(&gameModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrGameNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return err
		}
		return s.logError("game_store_delete_failed", err, "game_code", code)
	}
	return nil
}

// readTxOptions makes the aggregate's SELECTs share one snapshot. Postgres
// defaults to READ COMMITTED, where each statement sees its own. SQLite read
// transactions are already snapshot consistent.
func readTxOptions(dialect string) *sql.TxOptions {
	if dialect != DriverPostgres {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

func loadGame(tx *gorm.DB, code string, forUpdate bool) (*domain.Game, error) {
	var rows aggregateRows

	query := tx
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Where("code = ?", code).First(&rows.game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrGameNotFound
		}
		return nil, err
	}

	if err := tx.Where("game_code = ?", code).Order("seq ASC").Find(&rows.players).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("game_code = ?", code).Order("round_number ASC").Find(&rows.issues).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("game_code = ?", code).
		Order("round_number ASC").
		Order("voted_at ASC").
		Order("player_id ASC").
		Order("option_id ASC").
		Find(&rows.votes).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("game_code = ?", code).Order("round_number ASC").Find(&rows.results).Error; err != nil {
		return nil, err
	}

	return rows.toGame()
}

func insertChildren(tx *gorm.DB, rows aggregateRows) error {
	if len(rows.players) > 0 {
		if err := tx.Create(&rows.players).Error; err != nil {
			return err
		}
	}
	return insertRounds(tx, rows)
}

// syncPlayers removes vacated seats, then upserts the remaining roster
func syncPlayers(tx *gorm.DB, rows aggregateRows) error {
	keep := make([]string, 0, len(rows.players))
	for _, p := range rows.players {
		keep = append(keep, p.ID)
	}

	del := tx.Where("game_code = ?", rows.game.Code)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	if err := del.Delete(&playerModel{}).Error; err != nil {
		return err
	}

	if len(rows.players) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"seq",
			"display_name",
			"is_ready",
			"phase1_score",
			"phase2_score",
			"total_score",
		}),
	}).Create(&rows.players).Error
}

// deleteRounds clears round bindings, votes and history. They are rewritten
// from the aggregate on every update.
func deleteRounds(tx *gorm.DB, code string) error {
	for _, model := range []any{&voteModel{}, &roundResultModel{}, &gameIssueModel{}} {
		if err := tx.Where("game_code = ?", code).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func insertRounds(tx *gorm.DB, rows aggregateRows) error {
	if len(rows.issues) > 0 {
		if err := tx.Create(&rows.issues).Error; err != nil {
			return err
		}
	}
	if len(rows.votes) > 0 {
		if err := tx.Create(&rows.votes).Error; err != nil {
			return err
		}
	}
	if len(rows.results) > 0 {
		if err := tx.Create(&rows.results).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+6)
	fields = append(fields,
		"event", event,
		"module", "store/relational",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("game store operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
