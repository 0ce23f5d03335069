// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fingerprint computes the content fingerprint described in §4.B:
// a pure function from torrent metadata to one of three fidelity levels
// (structural, full, exact), used by the importer and reseed planner to
// recognize the same payload across different sites and clients.
package fingerprint

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/pkg/errors"

	"github.com/graftnet/graft/internal/domain"
	"github.com/graftnet/graft/pkg/hashutil"
)

// Level reports which tier of the three-level fidelity ladder a
// Fingerprint was computed at.
type Level int

const (
	// Structural fingerprints carry only the size tuple — no file list was
	// available (e.g. a bare client torrent listing with no file details).
	Structural Level = iota
	// Full fingerprints add a digest over the sorted file list.
	Full
	// Exact fingerprints are an info-hash, authoritative by construction.
	Exact
)

// File is one entry of a torrent's file list, the unit Compute hashes over.
type File struct {
	Path string
	Size int64
}

// Fingerprint is the computed content descriptor. InfoHash is set only at
// Exact level; FilesHash is set at Full and Exact levels, never at Structural.
type Fingerprint struct {
	Level           Level
	TotalSize       int64
	FileCount       int
	LargestFileSize int64
	FilesHash       string // 40 lowercase hex chars, Full and Exact levels
	InfoHash        string // 40 lowercase hex chars, Exact level only
}

// ComputeFromTuple builds a Structural or Full fingerprint from a client's
// torrent listing: total size, file count, largest file, and optionally the
// file list itself. Pass a nil files slice for Structural level.
func ComputeFromTuple(totalSize int64, fileCount int, largestFile int64, files []File) (*Fingerprint, error) {
	fp := &Fingerprint{
		TotalSize:       totalSize,
		FileCount:       fileCount,
		LargestFileSize: largestFile,
	}

	if len(files) == 0 {
		fp.Level = Structural
		return fp, nil
	}

	digest, err := hashFileList(files)
	if err != nil {
		return nil, err
	}
	fp.Level = Full
	fp.FilesHash = digest
	return fp, nil
}

// ComputeFromMetainfo builds an Exact fingerprint from parsed .torrent
// bytes, the path the reseed executor takes once it has fetched a torrent
// file from a site adapter.
func ComputeFromMetainfo(mi *metainfo.MetaInfo) (*Fingerprint, error) {
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformedTorrent, err.Error())
	}

	files, totalSize, largest := filesFromInfo(&info)

	fp := &Fingerprint{
		Level:           Exact,
		TotalSize:       totalSize,
		FileCount:       len(files),
		LargestFileSize: largest,
		InfoHash:        hashutil.Normalize(mi.HashInfoBytes().HexString()),
	}

	if len(files) > 0 {
		digest, err := hashFileList(files)
		if err != nil {
			return nil, err
		}
		fp.FilesHash = digest
	}
	return fp, nil
}

func filesFromInfo(info *metainfo.Info) (files []File, totalSize, largest int64) {
	if len(info.Files) == 0 {
		return []File{{Path: info.Name, Size: info.Length}}, info.Length, info.Length
	}

	files = make([]File, len(info.Files))
	for i, f := range info.Files {
		size := f.Length
		files[i] = File{Path: strings.Join(f.Path, "/"), Size: size}
		totalSize += size
		if size > largest {
			largest = size
		}
	}
	return files, totalSize, largest
}

// hashFileList implements §4.B's canonical encoding: UTF-8 path, NUL,
// decimal size as ASCII, LF, concatenated in ascending path order, hashed
// with SHA-1. Backslashes are first turned into forward slashes; a path
// with a leading slash or an empty, "." or ".." segment then fails with
// ErrMalformedTorrent.
func hashFileList(files []File) (string, error) {
	normalized := make([]File, len(files))
	for i, f := range files {
		path, err := normalizePath(f.Path)
		if err != nil {
			return "", err
		}
		normalized[i] = File{Path: path, Size: f.Size}
	}

	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Path < normalized[j].Path })

	var buf bytes.Buffer
	for _, f := range normalized {
		buf.WriteString(f.Path)
		buf.WriteByte(0)
		buf.WriteString(strconv.FormatInt(f.Size, 10))
		buf.WriteByte('\n')
	}

	sum := sha1.Sum(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func normalizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\\", "/")
	if strings.HasPrefix(path, "/") {
		return "", errors.Wrapf(domain.ErrMalformedTorrent, "path %q has a leading slash", path)
	}

	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return "", errors.Wrapf(domain.ErrMalformedTorrent, "path %q has an invalid segment %q", path, seg)
		}
	}
	return path, nil
}
