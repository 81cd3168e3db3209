package entity

import (
	"encoding/base64"
	"encoding/json"
)

// cursor marks the last item of a page: its id and its position in the index.
type cursor struct {
	ID  string `json:"id"`
	Pos int    `json:"pos"`
}

func (c cursor) encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(token string) (cursor, error) {
	var c cursor
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, NewError(RetCValidation, "invalid cursor")
	}
	if err := json.Unmarshal(data, &c); err != nil || c.ID == "" || c.Pos < 0 {
		return c, NewError(RetCValidation, "invalid cursor")
	}
	return c, nil
}

// start returns the index position following the cursor. If the id still sits at the
// recorded position or elsewhere, listing continues right after it. If it was deleted,
// the member that moved into its slot comes next.
func (c cursor) start(ids []string) int {
	if c.Pos < len(ids) && ids[c.Pos] == c.ID {
		return c.Pos + 1
	}
	for i, id := range ids {
		if id == c.ID {
			return i + 1
		}
	}
	return min(c.Pos, len(ids))
}
