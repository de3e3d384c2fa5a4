package s3core

// calculateMultipartSize returns the per-part size, part count, and last
// part size for an object of total size, per spec.md §4.3: partSize is
// ceil(S/MAX_MULTIPART_COUNT) rounded up to a multiple of MIN_MULTIPART_SIZE.
func calculateMultipartSize(size int64) (partSize int64, partCount int, lastPartSize int64, err error) {
	if size > maxObjectSize {
		return 0, 0, 0, argumentError("object size exceeds the maximum allowed 5 TiB")
	}
	if size < 0 {
		return 0, 0, 0, argumentError("object size must be known to calculate a multipart layout")
	}

	partSize = divCeil(size, maxMultipartCount)
	if partSize < minPartSize {
		partSize = minPartSize
	} else {
		partSize = divCeil(partSize, minPartSize) * minPartSize
	}

	if partSize > maxPartSize {
		return 0, 0, 0, argumentError("object size requires a part size larger than the maximum allowed 5 GiB")
	}

	partCount = int(divCeil(size, partSize))
	lastPartSize = partSize - (partSize*int64(partCount) - size)
	if lastPartSize == 0 {
		lastPartSize = partSize
	}
	return partSize, partCount, lastPartSize, nil
}

func divCeil(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// optimalPartSize is calculateMultipartSize's first return value alone,
// used by the unknown-size stream path where only partSize matters up
// front (spec.md §4.3): unknown-size streams are projected at
// maxObjectSize, the largest partSize the layout could ever need.
func optimalPartSize() int64 {
	partSize, _, _, err := calculateMultipartSize(maxObjectSize)
	if err != nil {
		return maxPartSize
	}
	return partSize
}
