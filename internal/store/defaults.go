package store

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/hearth/internal/catalog"
)

// ListDefaults loads the appliance_defaults reference table; name lookup
// happens in-process via catalog.NewStaticFrom.
func (s *Store) ListDefaults(ctx context.Context) ([]catalog.Default, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT appliance_type, typical_power_watts, COALESCE(category, '')
		FROM appliance_defaults ORDER BY appliance_type`)
	if err != nil {
		return nil, fmt.Errorf("query defaults: %w", err)
	}
	defer rows.Close()

	var out []catalog.Default
	for rows.Next() {
		var d catalog.Default
		if err := rows.Scan(&d.Type, &d.PowerWatts, &d.Category); err != nil {
			return nil, fmt.Errorf("scan default: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate defaults: %w", err)
	}
	return out, nil
}
