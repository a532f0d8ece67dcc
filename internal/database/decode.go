package database

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/internal/validation"
	"github.com/temcen/recoengine/pkg/models"
)

// RecordDecoder turns the JSON documents stored on user and product rows into
// typed sets. Malformed input never fails: it decodes to an empty set.
type RecordDecoder struct {
	schemas *validation.SchemaValidator
	logger  *logrus.Logger
}

func NewRecordDecoder(schemas *validation.SchemaValidator, logger *logrus.Logger) *RecordDecoder {
	return &RecordDecoder{
		schemas: schemas,
		logger:  logger,
	}
}

type clickEvents struct {
	Click []interface{} `json:"click"`
}

type purchaseEntry map[string]interface{}

// ClickEvents decodes events_json into the set of clicked product ids.
func (d *RecordDecoder) ClickEvents(raw []byte) mapset.Set[string] {
	ids := models.NewIDSet()

	var events clickEvents
	if !d.decode(validation.ClickEventsSchema, raw, &events) {
		return ids
	}

	for _, v := range events.Click {
		if id, ok := idString(v); ok {
			ids.Add(id)
		}
	}
	return ids
}

// Purchases decodes purchased_json into the set of purchased product ids.
// Entries without a product_id are skipped.
func (d *RecordDecoder) Purchases(raw []byte) mapset.Set[string] {
	ids := models.NewIDSet()

	var entries []interface{}
	if !d.decode(validation.PurchasesSchema, raw, &entries) {
		return ids
	}

	for _, entry := range entries {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := idString(obj["product_id"]); ok {
			ids.Add(id)
		}
	}
	return ids
}

// BoughtTogether decodes a bought_together column. The column holds either
// a JSON-encoded list or a native list, both decode to the same set.
func (d *RecordDecoder) BoughtTogether(value interface{}) mapset.Set[string] {
	ids := models.NewIDSet()

	var items []interface{}
	switch v := value.(type) {
	case nil:
		return ids
	case string:
		if !d.decode(validation.BoughtTogetherSchema, []byte(v), &items) {
			return ids
		}
	case []byte:
		if !d.decode(validation.BoughtTogetherSchema, v, &items) {
			return ids
		}
	case []string:
		for _, id := range v {
			if id != "" {
				ids.Add(id)
			}
		}
		return ids
	case []interface{}:
		items = v
	default:
		d.logger.WithField("type", typeName(value)).Debug("Unsupported bought_together value")
		return ids
	}

	for _, item := range items {
		if id, ok := idString(item); ok {
			ids.Add(id)
		}
	}
	return ids
}

func (d *RecordDecoder) decode(schemaName string, raw []byte, target interface{}) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}

	if result := d.schemas.Validate(schemaName, raw); !result.Valid {
		d.logger.WithFields(logrus.Fields{
			"schema": schemaName,
			"error":  result.FirstError(),
			"prefix": preview(raw),
		}).Debug("Malformed record, using empty default")
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		d.logger.WithError(err).WithField("schema", schemaName).Debug("Failed to decode record, using empty default")
		return false
	}
	return true
}

func idString(v interface{}) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case json.Number:
		return id.String(), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int:
		return strconv.Itoa(id), true
	default:
		return "", false
	}
}

func preview(raw []byte) string {
	if len(raw) > 50 {
		return string(raw[:50]) + "..."
	}
	return string(raw)
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
