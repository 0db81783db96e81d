// ABOUTME: Argument parsing for the item-editing commands
// ABOUTME: Accepts both "--flag value" and "--flag=value"

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/2389/inventory/internal/inventory"
)

// itemFlags holds the fields given on the command line; nil means not given.
type itemFlags struct {
	id       *int64
	name     *string
	price    *float64
	quantity *int
}

// apply overwrites the given fields of item.
func (f itemFlags) apply(item inventory.Item) inventory.Item {
	if f.id != nil {
		item.ID = *f.id
	}
	if f.name != nil {
		item.Name = *f.name
	}
	if f.price != nil {
		item.Price = *f.price
	}
	if f.quantity != nil {
		item.Quantity = *f.quantity
	}
	return item
}

func parseItemFlags(args []string, allowID bool) (itemFlags, error) {
	var f itemFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return f, fmt.Errorf("unexpected argument: %s", arg)
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !hasValue {
			if i+1 >= len(args) {
				return f, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		}

		switch name {
		case "id":
			if !allowID {
				return f, fmt.Errorf("unknown flag: %s", arg)
			}
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return f, fmt.Errorf("invalid id %q", value)
			}
			f.id = &id
		case "name", "n":
			f.name = &value
		case "price", "p":
			price, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return f, fmt.Errorf("invalid price %q", value)
			}
			f.price = &price
		case "quantity", "q":
			quantity, err := strconv.Atoi(value)
			if err != nil {
				return f, fmt.Errorf("invalid quantity %q", value)
			}
			f.quantity = &quantity
		default:
			return f, fmt.Errorf("unknown flag: %s", arg)
		}
	}

	return f, nil
}
