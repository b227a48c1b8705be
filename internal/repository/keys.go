// Package repository maps domain records onto deterministic Record Store
// keys and back.
package repository

const (
	donationKeyPrefix = "donation:"
	grantKeyPrefix    = "grant:"
	indexKey          = "index:donations"
)

// donationKey builds "donation:{reference}:{downloadId}". Reference and
// download id together form the record's storage key.
func donationKey(reference, downloadID string) string {
	return donationKeyPrefix + reference + ":" + downloadID
}

// donationRefPrefix covers every donation key for one payment reference.
func donationRefPrefix(reference string) string {
	return donationKeyPrefix + reference + ":"
}

func grantKey(downloadID string) string {
	return grantKeyPrefix + downloadID
}
