package redis

import "fmt"

const (
	// KeyPrefixListing is the prefix for listing documents
	KeyPrefixListing = "aimarket:listing:"
	// KeyAllListings is the set of every listing ID
	KeyAllListings = "aimarket:listings:all"
	// KeyActiveListings is the set of approved listing IDs
	KeyActiveListings = "aimarket:listings:active"
)

// ListingKey returns the Redis key for a listing by ID
func ListingKey(id string) string {
	return KeyPrefixListing + id
}

// ListingKeys maps ids to their document keys
func ListingKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ListingKey(id)
	}
	return keys
}

// IndexKey returns the ID set backing a List call
func IndexKey(activeOnly bool) string {
	if activeOnly {
		return KeyActiveListings
	}
	return KeyAllListings
}

// ExtractListingID extracts the listing ID from a Redis key
func ExtractListingID(key string) (string, error) {
	if len(key) <= len(KeyPrefixListing) || key[:len(KeyPrefixListing)] != KeyPrefixListing {
		return "", fmt.Errorf("invalid listing key: %s", key)
	}
	return key[len(KeyPrefixListing):], nil
}
