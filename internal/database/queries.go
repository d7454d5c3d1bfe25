package database

import (
	"fmt"
	"strings"

	"github.com/jgoulah/dailyusage/pkg/models"
)

// dialect holds the statements that differ between MySQL and sqlite
type dialect struct {
	name   string
	upsert string
}

var (
	mysqlDialect = dialect{
		name: DriverMySQL,
		upsert: "INSERT INTO `DailyUsage` (`date`, `first`, `last`, `name`)\n" +
			"VALUES (?, ?, ?, ?)\n" +
			"ON DUPLICATE KEY UPDATE `first` = VALUES(`first`), `last` = VALUES(`last`)",
	}

	sqliteDialect = dialect{
		name: DriverSQLite,
		upsert: "INSERT INTO `DailyUsage` (`date`, `first`, `last`, `name`)\n" +
			"VALUES (?, ?, ?, ?)\n" +
			"ON CONFLICT(`date`, `name`) DO UPDATE SET `first` = excluded.`first`, `last` = excluded.`last`",
	}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverMySQL:
		return mysqlDialect, nil
	case DriverSQLite:
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q (available: mysql, sqlite)", driver)
	}
}

// firstLastQuery selects the earliest and latest value of one day in a single row.
// Both columns are NULL when the day has no readings.
// Parameters: the date (YYYY-MM-DD), followed by the device id for device sources; repeated per subquery.
const firstLastQuery = `
SELECT
	(SELECT %[1]s FROM %[2]s WHERE DATE(%[3]s) = ?%[4]s ORDER BY %[3]s ASC LIMIT 1) AS first_value,
	(SELECT %[1]s FROM %[2]s WHERE DATE(%[3]s) = ?%[4]s ORDER BY %[3]s DESC LIMIT 1) AS last_value`

// buildFirstLast renders firstLastQuery for a source and returns its arguments
func buildFirstLast(src models.Source, date string) (string, []any, error) {
	var filter string
	args := []any{date}

	switch src.Kind {
	case models.KindMeter:
	case models.KindDevice:
		filter = fmt.Sprintf(" AND %s = ?", quote(src.DeviceColumn))
		args = append(args, src.DeviceID)
	default:
		return "", nil, fmt.Errorf("source %s: unknown kind %q", src.Name, src.Kind)
	}

	query := fmt.Sprintf(firstLastQuery, quote(src.ValueColumn), quote(src.Table), quote(src.TimestampColumn), filter)
	return query, append(args, args...), nil
}

// insertReadingQuery renders an insert into a source table
func insertReadingQuery(src models.Source) (string, error) {
	switch src.Kind {
	case models.KindMeter:
		return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
			quote(src.Table), quote(src.TimestampColumn), quote(src.ValueColumn)), nil
	case models.KindDevice:
		return fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)",
			quote(src.Table), quote(src.TimestampColumn), quote(src.DeviceColumn), quote(src.ValueColumn)), nil
	default:
		return "", fmt.Errorf("source %s: unknown kind %q", src.Name, src.Kind)
	}
}

// quote wraps an identifier in backticks, which both MySQL and sqlite accept
func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// sqliteSchema mirrors the production tables for local databases and tests
const sqliteSchema = "" +
	"CREATE TABLE IF NOT EXISTS `DailyUsage` (\n" +
	"	id INTEGER PRIMARY KEY AUTOINCREMENT,\n" +
	"	`date` TEXT NOT NULL,\n" +
	"	`first` REAL,\n" +
	"	`last` REAL,\n" +
	"	`name` TEXT NOT NULL,\n" +
	"	UNIQUE(`date`, `name`)\n" +
	");\n" +
	"CREATE TABLE IF NOT EXISTS tuya_zaehler (\n" +
	"	id INTEGER PRIMARY KEY AUTOINCREMENT,\n" +
	"	inserted_at TEXT NOT NULL,\n" +
	"	Zaehlerstand REAL\n" +
	");\n" +
	"CREATE INDEX IF NOT EXISTS idx_tuya_inserted_at ON tuya_zaehler(inserted_at);\n" +
	"CREATE TABLE IF NOT EXISTS power_consumption (\n" +
	"	id INTEGER PRIMARY KEY AUTOINCREMENT,\n" +
	"	insertedAt TEXT NOT NULL,\n" +
	"	deviceId INTEGER NOT NULL,\n" +
	"	phase1_totalReturned REAL\n" +
	");\n" +
	"CREATE INDEX IF NOT EXISTS idx_power_device_inserted ON power_consumption(deviceId, insertedAt);\n"
