package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperpolymath/ochrance/fsmodel"
)

func writeImage(t *testing.T, dir string, blocks int, fill byte) string {
	t.Helper()
	path := filepath.Join(dir, "image.bin")
	data := bytes.Repeat([]byte{fill}, blocks*fsmodel.BlockSize)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAttestThenVerifyAttested(t *testing.T) {
	dir := t.TempDir()
	image := writeImage(t, dir, 3, 0x42)
	manifestPath := filepath.Join(dir, "manifest.a2ml")

	var out, errOut bytes.Buffer
	code := run([]string{"attest", "--path", image, "--output", manifestPath}, &out, &errOut)
	if code != 0 {
		t.Fatalf("attest exit code = %d, stderr = %s", code, errOut.String())
	}

	out.Reset()
	errOut.Reset()
	code = run([]string{"verify", "--manifest", manifestPath, "--path", image, "--mode", "attested"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("verify exit code = %d, stderr = %s", code, errOut.String())
	}
}

func TestVerifyDetectsBlockTamper(t *testing.T) {
	dir := t.TempDir()
	image := writeImage(t, dir, 3, 0x11)
	manifestPath := filepath.Join(dir, "manifest.a2ml")

	var out, errOut bytes.Buffer
	if code := run([]string{"attest", "--path", image, "--output", manifestPath}, &out, &errOut); code != 0 {
		t.Fatalf("attest exit code = %d, stderr = %s", code, errOut.String())
	}

	raw, err := os.ReadFile(image)
	if err != nil {
		t.Fatal(err)
	}
	raw[0] ^= 0x01
	if err := os.WriteFile(image, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	errOut.Reset()
	code := run([]string{"verify", "--manifest", manifestPath, "--path", image, "--mode", "checked"}, &out, &errOut)
	if code != 3 {
		t.Fatalf("verify exit code = %d, want 3 (hash-mismatch), stderr = %s", code, errOut.String())
	}
}

func TestRepairRestoresTamperedBlockFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	casDir := filepath.Join(dir, "cas")
	image := writeImage(t, dir, 3, 0x42)
	manifestPath := filepath.Join(dir, "manifest.a2ml")

	var out, errOut bytes.Buffer
	code := run([]string{"attest", "--path", image, "--output", manifestPath, "--localfs-dir", casDir}, &out, &errOut)
	if code != 0 {
		t.Fatalf("attest exit code = %d, stderr = %s", code, errOut.String())
	}

	original, err := os.ReadFile(image)
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte(nil), original...)
	tampered[0] ^= 0x01
	if err := os.WriteFile(image, tampered, 0o644); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	errOut.Reset()
	code = run([]string{"repair", "--manifest", manifestPath, "--path", image, "--mode", "checked", "--localfs-dir", casDir}, &out, &errOut)
	if code != 0 {
		t.Fatalf("repair exit code = %d, want 0, stderr = %s", code, errOut.String())
	}

	repaired, err := os.ReadFile(image)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(repaired, original) {
		t.Fatalf("repaired image does not match original snapshot contents")
	}

	out.Reset()
	errOut.Reset()
	code = run([]string{"verify", "--manifest", manifestPath, "--path", image, "--mode", "checked"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("post-repair verify exit code = %d, want 0, stderr = %s", code, errOut.String())
	}
}

func TestRepairRequiresLocalfsDir(t *testing.T) {
	dir := t.TempDir()
	image := writeImage(t, dir, 3, 0x77)
	manifestPath := filepath.Join(dir, "manifest.a2ml")

	var out, errOut bytes.Buffer
	if code := run([]string{"attest", "--path", image, "--output", manifestPath}, &out, &errOut); code != 0 {
		t.Fatalf("attest exit code = %d, stderr = %s", code, errOut.String())
	}

	out.Reset()
	errOut.Reset()
	code := run([]string{"repair", "--manifest", manifestPath, "--path", image, "--mode", "checked"}, &out, &errOut)
	if code != 64 {
		t.Fatalf("repair exit code = %d, want 64 (usage error, missing --localfs-dir), stderr = %s", code, errOut.String())
	}
}

func TestVerifyUsageErrorMissingFlags(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"verify", "--path", "/nonexistent"}, &out, &errOut)
	if code != 64 {
		t.Fatalf("exit code = %d, want 64 (usage error)", code)
	}
}

func TestRunNoArgsIsUsageError(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 64 {
		t.Fatalf("exit code = %d, want 64", code)
	}
}
