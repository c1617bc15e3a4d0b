// Command ochrance is the reference CLI for the Ochránce filesystem
// integrity subsystem: attest a block device image to an A2ML
// manifest, verify an image against a manifest at a chosen strictness
// mode, and attempt a single-cycle repair when verification surfaces
// a remediable failure.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hyperpolymath/ochrance/diagnostic"
	"github.com/hyperpolymath/ochrance/fsmodel"
	"github.com/hyperpolymath/ochrance/hash"
	"github.com/hyperpolymath/ochrance/keys"
	"github.com/hyperpolymath/ochrance/policy"
	"github.com/hyperpolymath/ochrance/storage/casregistry"
	_ "github.com/hyperpolymath/ochrance/storage/localfs"
	"github.com/hyperpolymath/ochrance/subsystem"
	"github.com/hyperpolymath/ochrance/verifymode"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 64
	}

	switch args[0] {
	case "attest":
		return cmdAttest(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "repair":
		return cmdRepair(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 64
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ochrance: filesystem integrity attestation and verification")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ochrance attest --path <image> --output <manifest.a2ml> [--algorithm sha256|sha384|sha512|blake3] [--producer <name>] [--subsystem <name>] [--format-version <v>] [--sign-seed-hex <64hex> --signer <name>] [--localfs-dir <cas-dir>]")
	fmt.Fprintln(w, "  ochrance verify --manifest <manifest.a2ml> --path <image> --mode lax|checked|attested")
	fmt.Fprintln(w, "  ochrance repair --manifest <manifest.a2ml> --path <image> --localfs-dir <cas-dir> --mode lax|checked|attested [--output <repaired-image>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - <image> is any regular file, read as a raw sequence of fixed-size blocks")
	fmt.Fprintln(w, "    through the same BlockIOPort contract a real NVMe device satisfies")
	fmt.Fprintln(w, "  - --localfs-dir names a content-addressed snapshot store: attest puts a")
	fmt.Fprintln(w, "    full prior-good-state snapshot there and records its digest in @refs;")
	fmt.Fprintln(w, "    repair fetches that snapshot back out by digest to drive its repair cycle")
	fmt.Fprintln(w, "  - verify prints the q/p/z diagnostic to stderr on failure")
	fmt.Fprintln(w, "  - exit codes: 0 ok, 2 structural failure, 3 hash-mismatch, 4 merkle-root mismatch,")
	fmt.Fprintln(w, "    5 repair attempted and failed, 64 usage error, 70 internal error")
}

func cmdAttest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("attest", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var path, output, algorithmFlag, producer, subsystemName, formatVersion string
	var seedHex, signerName string
	fs.StringVar(&path, "path", "", "Path to the block device image to attest")
	fs.StringVar(&output, "output", "", "Path to write the A2ML manifest to")
	fs.StringVar(&algorithmFlag, "algorithm", "sha256", "Hash algorithm: sha256, sha384, sha512, blake3")
	fs.StringVar(&producer, "producer", "ochrance", "Value recorded in @manifest.producer")
	fs.StringVar(&subsystemName, "subsystem", "filesystem", "Value recorded in @manifest.subsystem")
	fs.StringVar(&formatVersion, "format-version", "1.0", "Manifest format version")
	fs.StringVar(&seedHex, "sign-seed-hex", "", "ed25519 seed (64 hex chars) to sign the manifest root")
	fs.StringVar(&signerName, "signer", "", "Signer name recorded in @attestation.signer (required with --sign-seed-hex)")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)

	if err := fs.Parse(args); err != nil {
		return 64
	}
	if path == "" || output == "" {
		fmt.Fprintln(errOut, "attest: --path and --output are required")
		return 64
	}
	if seedHex != "" && signerName == "" {
		fmt.Fprintln(errOut, "attest: --signer is required with --sign-seed-hex")
		return 64
	}
	algorithm, err := hash.ParseAlgorithm(algorithmFlag)
	if err != nil {
		fmt.Fprintf(errOut, "attest: %v\n", err)
		return 64
	}

	port, blockCount, err := loadDeviceImage(path)
	if err != nil {
		fmt.Fprintf(errOut, "attest: %v\n", err)
		return 70
	}
	defer port.Close()

	sub := subsystem.New(port, algorithm)
	state, err := sub.ReadState(path, blockCount, fsmodel.BlockSize)
	if err != nil {
		fmt.Fprintf(errOut, "attest: %v\n", err)
		return 70
	}
	manifest, err := sub.Attest(state, formatVersion)
	if err != nil {
		fmt.Fprintf(errOut, "attest: %v\n", err)
		return 70
	}

	meta := newManifestMeta(producer, subsystemName, path, "")

	if cas, closeCAS, casErr := casregistry.Open("localfs", casregistry.UsageCLI); casErr == nil {
		digest, err := putSnapshot(cas, state, algorithm)
		if closeCAS != nil {
			defer closeCAS()
		}
		if err != nil {
			fmt.Fprintf(errOut, "attest: %v\n", err)
			return 70
		}
		meta.SnapshotDigest = &digest
	}

	var sig *attestationSig
	if seedHex != "" {
		seed, err := keys.ParseSeedHex(seedHex)
		if err != nil {
			fmt.Fprintf(errOut, "attest: %v\n", err)
			return 64
		}
		priv := ed25519PrivateKeyFromSeed(seed)
		b64 := keys.SignEd25519SHA256(manifest.Root().Bytes, priv)
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			fmt.Fprintf(errOut, "attest: %v\n", err)
			return 70
		}
		sig = &attestationSig{Signer: signerName, Algorithm: "ed25519-sha256", Signature: raw}
	}

	doc := buildDocument(meta, manifest, sig)
	if err := validateAndWriteDocument(doc, output); err != nil {
		fmt.Fprintf(errOut, "attest: %v\n", err)
		return 70
	}

	fmt.Fprintf(out, "attested %d blocks, root %s, manifest written to %s\n", manifest.N(), manifest.Root(), output)
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var manifestPath, path, modeFlag string
	fs.StringVar(&manifestPath, "manifest", "", "Path to the A2ML manifest to verify against")
	fs.StringVar(&path, "path", "", "Path to the block device image to verify")
	fs.StringVar(&modeFlag, "mode", "", "Verification mode: lax, checked, attested")

	if err := fs.Parse(args); err != nil {
		return 64
	}
	if manifestPath == "" || path == "" || modeFlag == "" {
		fmt.Fprintln(errOut, "verify: --manifest, --path, and --mode are required")
		return 64
	}
	mode, err := verifymode.Parse(modeFlag)
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 64
	}

	manifest, err := readManifestFile(manifestPath)
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 70
	}

	port, blockCount, err := loadDeviceImage(path)
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 70
	}
	defer port.Close()

	sub := subsystem.New(port, manifest.Algorithm())
	state, err := sub.ReadState(path, blockCount, fsmodel.BlockSize)
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 70
	}

	w, diag := sub.Verify(mode, state, manifest)
	if diag != nil {
		fmt.Fprintln(errOut, diag.String())
		return diagExitCode(diag)
	}

	counters, violations := policy.EvaluateAll(state, manifestPolicyPredicates(manifest))
	if len(violations) > 0 {
		fmt.Fprintf(errOut, "policy: %d/%d predicates failed\n", counters.Failed, counters.Total())
		for _, v := range violations {
			fmt.Fprintf(errOut, "  - %s\n", v.CounterExample)
		}
		return 2
	}

	fmt.Fprintf(out, "ok: %s (policy %d/%d passed)\n", w.Tier(), counters.Passed, counters.Total())
	return 0
}

// manifestPolicyPredicates are the @policy checks verify runs once the
// pure hash/merkle comparison itself has already passed: structural
// agreement between state and manifest, and the read-only invariant.
func manifestPolicyPredicates(manifest *fsmodel.Manifest) []policy.Predicate {
	return []policy.Predicate{
		policy.BlockCountMatches(manifest),
		policy.NoReadOnlyBlockModifiedAfter(manifest),
	}
}

func cmdRepair(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var manifestPath, path, modeFlag, outputPath string
	fs.StringVar(&manifestPath, "manifest", "", "Path to the A2ML manifest to verify against")
	fs.StringVar(&path, "path", "", "Path to the block device image to verify/repair")
	fs.StringVar(&modeFlag, "mode", "", "Verification mode: lax, checked, attested")
	fs.StringVar(&outputPath, "output", "", "Optional path to write the repaired image to")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)

	if err := fs.Parse(args); err != nil {
		return 64
	}
	if manifestPath == "" || path == "" || modeFlag == "" {
		fmt.Fprintln(errOut, "repair: --manifest, --path, and --mode are required")
		return 64
	}
	mode, err := verifymode.Parse(modeFlag)
	if err != nil {
		fmt.Fprintf(errOut, "repair: %v\n", err)
		return 64
	}

	cas, closeCAS, err := casregistry.Open("localfs", casregistry.UsageCLI)
	if err != nil {
		fmt.Fprintf(errOut, "repair: %v (--localfs-dir is required to open the snapshot store)\n", err)
		return 64
	}
	if closeCAS != nil {
		defer closeCAS()
	}

	doc, err := parseManifestDocument(manifestPath)
	if err != nil {
		fmt.Fprintf(errOut, "repair: %v\n", err)
		return 70
	}
	manifest, err := manifestFromDocument(doc)
	if err != nil {
		fmt.Fprintf(errOut, "repair: %v\n", err)
		return 70
	}
	snapshotDigest, ok := readSnapshotDigest(doc)
	if !ok {
		fmt.Fprintln(errOut, "repair: manifest has no @refs.snapshot_digest; attest with --localfs-dir to record one")
		return 70
	}
	snapshotPayload, err := cas.Get(snapshotDigest)
	if err != nil {
		fmt.Fprintf(errOut, "repair: %v\n", err)
		return 70
	}

	port, blockCount, err := loadDeviceImage(path)
	if err != nil {
		fmt.Fprintf(errOut, "repair: %v\n", err)
		return 70
	}
	defer port.Close()

	sub := subsystem.New(port, manifest.Algorithm())
	state, err := sub.ReadState(path, blockCount, fsmodel.BlockSize)
	if err != nil {
		fmt.Fprintf(errOut, "repair: %v\n", err)
		return 70
	}

	_, diag := sub.Verify(mode, state, manifest)
	if diag == nil {
		fmt.Fprintln(out, "ok: no repair needed")
		return 0
	}
	if !isRemediableBlockMismatch(diag) {
		fmt.Fprintln(errOut, diag.String())
		return diagExitCode(diag)
	}

	w, diag := sub.VerifyOrRepair(mode, state, manifest, snapshotPayload)
	if diag != nil {
		fmt.Fprintln(errOut, diag.String())
		return 5
	}

	if outputPath != "" {
		if err := writeDeviceImage(state, outputPath); err != nil {
			fmt.Fprintf(errOut, "repair: %v\n", err)
			return 70
		}
	} else {
		if err := sub.WriteState(path, state); err != nil {
			fmt.Fprintf(errOut, "repair: %v\n", err)
			return 70
		}
		if err := writeDeviceImage(state, path); err != nil {
			fmt.Fprintf(errOut, "repair: %v\n", err)
			return 70
		}
	}

	fmt.Fprintf(out, "repaired: %s\n", w.Tier())
	return 0
}

// isRemediableBlockMismatch reports whether diag is the one class of
// failure spec §9 allows an automatic repair cycle to attempt: a
// single block's hash-mismatch. Every other diagnostic is surfaced
// and fatal at this layer.
func isRemediableBlockMismatch(diag *diagnostic.Diagnostic) bool {
	return diag.Query.Code == diagnostic.HashMismatch && diag.Query.Field == "blocks"
}

// diagExitCode maps a verification failure onto spec §6's exit code
// vocabulary.
func diagExitCode(diag *diagnostic.Diagnostic) int {
	if diag.Query.Code == diagnostic.HashMismatch {
		if diag.Query.Field == "merkle-root" {
			return 4
		}
		return 3
	}
	return 2
}
