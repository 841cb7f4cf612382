package greader

import (
	"fmt"
	"math/big"
	"regexp"
)

// The stream backend wraps every identifier in a URI. Each pattern has
// a dedicated parser returning the bare id or an error naming the
// offending value; a mismatch is a data error, never skipped silently.
var (
	feedURIPattern  = regexp.MustCompile(`^feed/(\d+)$`)
	labelURIPattern = regexp.MustCompile(`^user/-/label/(\d+)$`)
	itemTagPattern  = regexp.MustCompile(`^tag:google\.com,2005:reader/item/([0-9a-f]+)$`)
)

func parseFeedURI(uri string) (string, error) {
	m := feedURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", fmt.Errorf("malformed feed uri %q", uri)
	}
	return m[1], nil
}

func parseLabelURI(uri string) (string, error) {
	m := labelURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", fmt.Errorf("malformed folder label uri %q", uri)
	}
	return m[1], nil
}

func parseItemTag(uri string) (string, error) {
	m := itemTagPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", fmt.Errorf("malformed item tag uri %q", uri)
	}
	return m[1], nil
}

// refIDToHex converts a decimal item-reference id into the lowercase
// hexadecimal form used as the canonical article id everywhere
// downstream. Ids are 64-bit values, so the conversion goes through
// big.Int rather than any native numeric type.
func refIDToHex(decimal string) (string, error) {
	n, ok := new(big.Int).SetString(decimal, 10)
	if !ok {
		return "", fmt.Errorf("unparseable item reference id %q", decimal)
	}
	return n.Text(16), nil
}
