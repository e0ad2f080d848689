package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParseJSONBytes 解析 JSON 位元組切片到結構體，拒絕尾端多餘資料
func ParseJSONBytes(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	for {
		t, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if t != nil {
			return fmt.Errorf("unexpected extra JSON data")
		}
	}
}

// FlexBool 接受 true/false、"yes"/"no"、"1"/"0" 與數字的布林值
type FlexBool bool

// UnmarshalJSON 實作 json.Unmarshaler
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`))
	switch s {
	case "true", "yes", "y", "1", "t":
		*b = true
	case "false", "no", "n", "0", "f", "", "null":
		*b = false
	default:
		var n float64
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			return fmt.Errorf("invalid boolean value %q", string(data))
		}
		*b = n != 0
	}
	return nil
}
