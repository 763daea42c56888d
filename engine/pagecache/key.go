package pagecache

import (
	"net/url"
	"strconv"
)

// Key identifies one cached page: a 1-based page number under a query
// signature. Equal filters, sort, page size and page give equal keys.
type Key struct {
	Page      int
	Signature string
}

func (k Key) String() string {
	return k.Signature + "#" + strconv.Itoa(k.Page)
}

func (k Key) WithPage(page int) Key {
	return Key{Page: page, Signature: k.Signature}
}

// Next returns the depth keys that follow k under the same signature.
func (k Key) Next(depth int) []Key {
	keys := make([]Key, 0, max(depth, 0))
	for i := 1; i <= depth; i++ {
		keys = append(keys, k.WithPage(k.Page+i))
	}
	return keys
}

// Sign serializes a query signature canonically: empty filter values are
// dropped and the remaining parameters are encoded in sorted key order.
func Sign(filters map[string]string, sort string, pageSize int) string {
	v := url.Values{}
	for k, val := range filters {
		if val == "" {
			continue
		}
		v.Set("f."+k, val)
	}
	if sort != "" {
		v.Set("sort", sort)
	}
	v.Set("size", strconv.Itoa(pageSize))
	return v.Encode()
}
