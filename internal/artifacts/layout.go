package artifacts

import (
	"fmt"
	"path/filepath"
)

// On-disk layout, per ASIN. The shape is load-bearing: artifact trees written
// by earlier renderer versions must keep resolving.
//
//	<root>/<asin>/coverage.json
//	<root>/<asin>/chunks/<chunkId>/pages/page_0001.png
//	<root>/<asin>/chunks/<chunkId>/full-content.txt
//	<root>/<asin>/chunks/<chunkId>/audio/<provider>.mp3
//	<root>/<asin>/chunks/<chunkId>/audio/<provider>-alignment.json
//	<root>/<asin>/chunks/<chunkId>/audio/<provider>-benchmarks.json
const (
	coverageFile     = "coverage.json"
	chunksDir        = "chunks"
	pagesDir         = "pages"
	combinedTextFile = "full-content.txt"
	audioDir         = "audio"
)

// BookDir returns the per-ASIN root directory.
func (s *Store) BookDir(asin string) string {
	return filepath.Join(s.root, asin)
}

// CoveragePath returns the per-ASIN coverage metadata document path.
func (s *Store) CoveragePath(asin string) string {
	return filepath.Join(s.root, asin, coverageFile)
}

// ChunkDir returns the directory holding one chunk's artifacts.
func (s *Store) ChunkDir(asin, chunkID string) string {
	return filepath.Join(s.root, asin, chunksDir, chunkID)
}

// PagesDir returns the rendered-pages directory for a chunk.
func (s *Store) PagesDir(asin, chunkID string) string {
	return filepath.Join(s.ChunkDir(asin, chunkID), pagesDir)
}

// PagePath returns the path of one rendered page image. Pages are numbered
// from zero and padded to four digits.
func (s *Store) PagePath(asin, chunkID string, index int) string {
	return filepath.Join(s.PagesDir(asin, chunkID), fmt.Sprintf("page_%04d.png", index))
}

// CombinedTextPath returns the combined OCR text file path for a chunk.
func (s *Store) CombinedTextPath(asin, chunkID string) string {
	return filepath.Join(s.ChunkDir(asin, chunkID), combinedTextFile)
}

// AudioPath returns the synthesized audio file path for a provider.
func (s *Store) AudioPath(asin, chunkID, provider string) string {
	return filepath.Join(s.ChunkDir(asin, chunkID), audioDir, provider+".mp3")
}

// AlignmentPath returns the provider-native word alignment file path.
func (s *Store) AlignmentPath(asin, chunkID, provider string) string {
	return filepath.Join(s.ChunkDir(asin, chunkID), audioDir, provider+"-alignment.json")
}

// BenchmarksPath returns the benchmark timeline file path for a provider.
func (s *Store) BenchmarksPath(asin, chunkID, provider string) string {
	return filepath.Join(s.ChunkDir(asin, chunkID), audioDir, provider+"-benchmarks.json")
}
