// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package patchclass

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openchami/linbo-dc/internal/fsutil"
)

// imageNameRe bounds the image names postsync deployment accepts: a safe
// basename ending in a known image suffix.
var imageNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+\.(qcow2|img|raw)$`)

// ValidImageName reports whether name is a deployable OS image filename.
func ValidImageName(name string) bool {
	return imageNameRe.MatchString(name)
}

const postsyncTemplate = `#!/bin/sh
# Generated postsync hook for {{IMAGENAME}}. Do not edit by hand.
set -e
SRC="/srv/linbo/patchclass/{{PATCHCLASS}}"
DST="$1"
mkdir -p "$DST/var/lib/patchclass"
cp -a "$SRC/driver-rules.sh" "$DST/var/lib/patchclass/"
cp -a "$SRC/drivers" "$DST/var/lib/patchclass/"
`

// GeneratePostsyncScript substitutes {{PATCHCLASS}} and {{IMAGENAME}}
// into the fixed postsync template. The hook copies
// driver-rules.sh and its driver sets onto a freshly synced image.
func GeneratePostsyncScript(patchclassName, imageName string) string {
	out := strings.ReplaceAll(postsyncTemplate, "{{PATCHCLASS}}", patchclassName)
	return strings.ReplaceAll(out, "{{IMAGENAME}}", imageName)
}

// DeployPostsyncToImage writes <imageBaseDir>/<imageBase>.postsync for
// the named image, rejecting image names outside the
// basename.(qcow2|img|raw) form.
func DeployPostsyncToImage(imageBaseDir, imageName, patchclassName string) error {
	if !ValidImageName(imageName) {
		return fmt.Errorf("%w: invalid image name %q", ErrUnsafePath, imageName)
	}
	base := strings.TrimSuffix(imageName, filepath.Ext(imageName))
	path := filepath.Join(imageBaseDir, base+".postsync")
	return fsutil.WriteFileAtomic(path, []byte(GeneratePostsyncScript(patchclassName, imageName)), 0o755)
}
