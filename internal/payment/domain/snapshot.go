package domain

import (
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EncodeItemIDs stores the cart-item snapshot as a JSON array of string IDs.
func EncodeItemIDs(ids []snowflake.ID) (datatypes.JSON, error) {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, id.String())
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeItemIDs reads the snapshot back.
func DecodeItemIDs(raw datatypes.JSON) ([]snowflake.ID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := snowflake.ParseString(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
