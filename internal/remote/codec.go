// ABOUTME: Converts items to and from protobuf well-known types for the wire
// ABOUTME: Integers travel as decimal strings so ids never lose precision

package remote

import (
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/2389/inventory/internal/inventory"
)

// Item field names on the wire.
const (
	fieldID       = "id"
	fieldName     = "name"
	fieldPrice    = "price"
	fieldQuantity = "quantity"
)

func encodeItem(item inventory.Item) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:       structpb.NewStringValue(strconv.FormatInt(item.ID, 10)),
		fieldName:     structpb.NewStringValue(item.Name),
		fieldPrice:    structpb.NewNumberValue(item.Price),
		fieldQuantity: structpb.NewStringValue(strconv.Itoa(item.Quantity)),
	}}
}

func decodeItem(s *structpb.Struct) (inventory.Item, error) {
	var item inventory.Item
	if s == nil {
		return item, fmt.Errorf("item is missing")
	}

	id, err := intField(s, fieldID)
	if err != nil {
		return item, err
	}
	quantity, err := intField(s, fieldQuantity)
	if err != nil {
		return item, err
	}
	if quantity < math.MinInt || quantity > math.MaxInt {
		return item, fmt.Errorf("field %s out of range", fieldQuantity)
	}

	name, ok := s.Fields[fieldName].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return item, fmt.Errorf("field %s must be a string", fieldName)
	}
	price, ok := s.Fields[fieldPrice].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return item, fmt.Errorf("field %s must be a number", fieldPrice)
	}

	item.ID = id
	item.Name = name.StringValue
	item.Price = price.NumberValue
	item.Quantity = int(quantity)
	return item, nil
}

// intField accepts a decimal string or an integral number.
func intField(s *structpb.Struct, name string) (int64, error) {
	switch v := s.Fields[name].GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(v.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing field %s: %w", name, err)
		}
		return n, nil
	case *structpb.Value_NumberValue:
		f := v.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, fmt.Errorf("field %s must be an integer", name)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("field %s is missing", name)
	}
}

func encodeItems(items []inventory.Item) *structpb.ListValue {
	values := make([]*structpb.Value, len(items))
	for i, item := range items {
		values[i] = structpb.NewStructValue(encodeItem(item))
	}
	return &structpb.ListValue{Values: values}
}

func decodeItems(l *structpb.ListValue) ([]inventory.Item, error) {
	items := make([]inventory.Item, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StructValue)
		if !ok {
			return nil, fmt.Errorf("list element %d is not an item", i)
		}
		item, err := decodeItem(s.StructValue)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// encodeOptionalItem encodes an absent item as null.
func encodeOptionalItem(item *inventory.Item) *structpb.Value {
	if item == nil {
		return structpb.NewNullValue()
	}
	return structpb.NewStructValue(encodeItem(*item))
}

func decodeOptionalItem(v *structpb.Value) (*inventory.Item, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_StructValue:
		item, err := decodeItem(k.StructValue)
		if err != nil {
			return nil, err
		}
		return &item, nil
	default:
		return nil, fmt.Errorf("expected item or null")
	}
}
