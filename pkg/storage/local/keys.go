package local

import "cumulus/pkg/storage"

// Key schema. Everything lives in one badger namespace, separated by
// single-letter prefixes:
//
//	o:<bucket>/<path>          object content (raw bytes)
//	m:<bucket>/<path>          object attributes (JSON)
//	r:<app>:<bucket>:<kind>    retry window (big-endian millis)
//
// Bucket names never contain "/", so the o: and m: keys parse unambiguously
// even though object paths may contain slashes.

func keyObject(bucket, path string) []byte {
	return []byte("o:" + bucket + "/" + path)
}

func keyAttrs(bucket, path string) []byte {
	return []byte("m:" + bucket + "/" + path)
}

func keyAttrsPrefix(bucket, prefix string) []byte {
	return []byte("m:" + bucket + "/" + prefix)
}

func keyRetry(app, bucket string, kind storage.RetryKind) []byte {
	return []byte("r:" + app + ":" + bucket + ":" + string(kind))
}
