// Package persistence provides SQLite-based storage for yearly farm
// decisions and water-right carryover records.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/hydroecon/farmwell/internal/agents"
	"github.com/hydroecon/farmwell/internal/opt"
)

// DB wraps a SQLite connection for simulation state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS farmers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		state INTEGER NOT NULL,
		satisfaction REAL NOT NULL,
		last_crop TEXT,
		last_rainfed INTEGER NOT NULL,
		years_farming INTEGER NOT NULL,
		farm_json TEXT NOT NULL,
		aquifer_json TEXT NOT NULL,
		water_right_json TEXT
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		farmer_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		crop TEXT NOT NULL,
		irrigated INTEGER NOT NULL,
		irr_depth_cm REAL NOT NULL,
		yield_1e4bu REAL NOT NULL,
		energy_pj REAL NOT NULL,
		profit_1e4usd REAL NOT NULL,
		satisfaction REAL NOT NULL,
		solver_status TEXT NOT NULL,
		gap REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_year ON decisions(year);
	CREATE INDEX IF NOT EXISTS idx_decisions_farmer ON decisions(farmer_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveFarmers writes all farmers to the database (full replace).
func (db *DB) SaveFarmers(farmers []*agents.Farmer) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM farmers"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO farmers
		(id, name, state, satisfaction, last_crop, last_rainfed, years_farming,
		 farm_json, aquifer_json, water_right_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range farmers {
		farmJSON, _ := json.Marshal(f.Farm)
		aqJSON, _ := json.Marshal(f.Aquifer)

		var wrJSON *string
		if f.WaterRight != nil {
			b, _ := json.Marshal(f.WaterRight)
			s := string(b)
			wrJSON = &s
		}

		rainfed := 0
		if f.LastRainfed {
			rainfed = 1
		}

		_, err := stmt.Exec(
			f.ID.String(), f.Name, f.State, f.Satisfaction,
			f.LastCrop, rainfed, f.YearsFarming,
			string(farmJSON), string(aqJSON), wrJSON,
		)
		if err != nil {
			return fmt.Errorf("insert farmer %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// LoadFarmers restores all farmers.
func (db *DB) LoadFarmers() ([]*agents.Farmer, error) {
	type row struct {
		ID             string  `db:"id"`
		Name           string  `db:"name"`
		State          uint8   `db:"state"`
		Satisfaction   float64 `db:"satisfaction"`
		LastCrop       string  `db:"last_crop"`
		LastRainfed    int     `db:"last_rainfed"`
		YearsFarming   int     `db:"years_farming"`
		FarmJSON       string  `db:"farm_json"`
		AquiferJSON    string  `db:"aquifer_json"`
		WaterRightJSON *string `db:"water_right_json"`
	}

	var rows []row
	if err := db.conn.Select(&rows, "SELECT * FROM farmers"); err != nil {
		return nil, err
	}

	farmers := make([]*agents.Farmer, 0, len(rows))
	for _, r := range rows {
		f := &agents.Farmer{
			Name:         r.Name,
			State:        agents.BehavioralState(r.State),
			Satisfaction: r.Satisfaction,
			LastCrop:     r.LastCrop,
			LastRainfed:  r.LastRainfed != 0,
			YearsFarming: r.YearsFarming,
			Threshold:    0.6,
			Uncertainty:  0.2,
		}
		if err := f.ID.UnmarshalText([]byte(r.ID)); err != nil {
			return nil, fmt.Errorf("farmer id %q: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.FarmJSON), &f.Farm); err != nil {
			return nil, fmt.Errorf("farmer %s farm: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.AquiferJSON), &f.Aquifer); err != nil {
			return nil, fmt.Errorf("farmer %s aquifer: %w", r.ID, err)
		}
		if r.WaterRightJSON != nil {
			var wr opt.WaterRightState
			if err := json.Unmarshal([]byte(*r.WaterRightJSON), &wr); err != nil {
				return nil, fmt.Errorf("farmer %s water right: %w", r.ID, err)
			}
			f.WaterRight = &wr
		}
		farmers = append(farmers, f)
	}
	return farmers, nil
}

// DecisionRecord is one (farmer, year) outcome row.
type DecisionRecord struct {
	FarmerID     string  `db:"farmer_id"`
	Year         int     `db:"year"`
	Crop         string  `db:"crop"`
	Irrigated    bool    `db:"irrigated"`
	IrrDepthCm   float64 `db:"irr_depth_cm"`
	Yield        float64 `db:"yield_1e4bu"`
	EnergyPJ     float64 `db:"energy_pj"`
	Profit       float64 `db:"profit_1e4usd"`
	Satisfaction float64 `db:"satisfaction"`
	SolverStatus string  `db:"solver_status"`
	Gap          float64 `db:"gap"`
}

// SaveDecisions appends one year's decision rows.
func (db *DB) SaveDecisions(records []DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		irrigated := 0
		if r.Irrigated {
			irrigated = 1
		}
		_, err := tx.Exec(`INSERT INTO decisions
			(farmer_id, year, crop, irrigated, irr_depth_cm, yield_1e4bu,
			 energy_pj, profit_1e4usd, satisfaction, solver_status, gap)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.FarmerID, r.Year, r.Crop, irrigated, r.IrrDepthCm, r.Yield,
			r.EnergyPJ, r.Profit, r.Satisfaction, r.SolverStatus, r.Gap,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DecisionsForYear returns all decision rows for one simulated year.
func (db *DB) DecisionsForYear(year int) ([]DecisionRecord, error) {
	var records []DecisionRecord
	err := db.conn.Select(&records, `SELECT
		farmer_id, year, crop, irrigated, irr_depth_cm, yield_1e4bu,
		energy_pj, profit_1e4usd, satisfaction, solver_status, gap
		FROM decisions WHERE year = ? ORDER BY farmer_id`, year)
	return records, err
}

// SaveMeta stores a key-value pair in simulation metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

// HasState reports whether a saved simulation exists.
func (db *DB) HasState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM farmers"); err != nil {
		return false
	}
	return n > 0
}

// SaveState performs a full save of farmers plus the year marker.
func (db *DB) SaveState(farmers []*agents.Farmer, year int) error {
	slog.Info("saving simulation state", "farmers", len(farmers), "year", year)

	if err := db.SaveFarmers(farmers); err != nil {
		return fmt.Errorf("save farmers: %w", err)
	}
	if err := db.SaveMeta("last_year", fmt.Sprintf("%d", year)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}
