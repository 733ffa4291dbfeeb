package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/atotto/clipboard"

	"adbhost/cmd/adb-cli/shellview"
	"adbhost/internal/adbconfig"
	"adbhost/internal/adblog"
	"adbhost/internal/httpapi"
	"adbhost/pkg/adbclient"
	"adbhost/pkg/adbsigner"
	"adbhost/pkg/adbtransport"
	"adbhost/pkg/fastboot"
	"adbhost/pkg/fastbootclient"
)

var (
	mode = flag.String("mode", "shell", "operation mode: shell, interactive, push, pull, install, uninstall, reboot, fastboot, serve")

	tcpAddr = flag.String("tcp", "", "connect over TCP instead of USB, e.g. 192.168.1.50:5555")
	keyPath = flag.String("key", "", "path to adb private key (PEM); defaults to ADB_KEY_PATH or ~/.android/adbkey")

	shellCmd = flag.String("c", "", "shell command to run in -mode=shell")

	localPath      = flag.String("local", "", "local file or directory path for push/pull/install")
	deviceFilename = flag.String("device-path", "", "device-side path for push/pull")

	destinationDir   = flag.String("dest-dir", "", "device directory an APK is pushed to before pm install")
	replaceExisting  = flag.Bool("replace", false, "pass -r to pm install")
	grantPermissions = flag.Bool("grant", false, "pass -g to pm install")
	keepData         = flag.Bool("keep-data", false, "pass -k to pm uninstall")

	rebootTarget = flag.String("target", "", "reboot target: \"\" (normal), bootloader, recovery")

	fastbootOp        = flag.String("fastboot-op", "getvar", "fastboot operation: getvar, flash, erase, oem, reboot, continue")
	fastbootPartition = flag.String("partition", "", "fastboot partition name for flash/erase")
	fastbootVar       = flag.String("var", "all", "fastboot getvar variable name")
	fastbootOemCmd    = flag.String("oem-cmd", "", "fastboot oem subcommand")

	servePort = flag.Int("port", 8081, "local HTTP control-plane port for -mode=serve")

	copyOutput = flag.Bool("copy", false, "copy command output to the clipboard")
)

func main() {
	flag.Parse()
	cfg := adbconfig.Load()
	logger := adblog.Get()
	defer logger.Close()

	if *mode == "fastboot" {
		runFastboot(cfg)
		return
	}

	t, err := connectTransport()
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	signers, err := loadSigners(cfg)
	if err != nil {
		log.Fatalf("load signers: %v", err)
	}

	device, err := adbclient.Connect(t, adbclient.ConnectOptions{
		Signers:           signers,
		EnrollmentTimeout: cfg.AuthTimeout(),
	})
	if err != nil {
		log.Fatalf("adb handshake: %v", err)
	}
	defer device.Close()
	logger.Logf("connected to device, state=%s", device.State())

	switch *mode {
	case "shell":
		out, err := device.Shell(*shellCmd)
		if err != nil {
			log.Fatalf("shell: %v", err)
		}
		fmt.Print(out)
		maybeCopy(out)

	case "interactive":
		if err := shellview.Run(device); err != nil {
			log.Fatalf("interactive shell: %v", err)
		}

	case "push":
		if *localPath == "" || *deviceFilename == "" {
			log.Fatal("push requires -local and -device-path")
		}
		if err := device.Push(*localPath, *deviceFilename, progressPrinter(*localPath)); err != nil {
			log.Fatalf("push: %v", err)
		}
		fmt.Printf("pushed %s -> %s\n", *localPath, *deviceFilename)

	case "pull":
		if *localPath == "" || *deviceFilename == "" {
			log.Fatal("pull requires -local and -device-path")
		}
		if err := device.PullToFile(*deviceFilename, *localPath); err != nil {
			log.Fatalf("pull: %v", err)
		}
		fmt.Printf("pulled %s -> %s\n", *deviceFilename, *localPath)

	case "install":
		if *localPath == "" {
			log.Fatal("install requires -local <apk path>")
		}
		out, err := device.Install(*localPath, *destinationDir, *replaceExisting, *grantPermissions, progressPrinter(*localPath))
		if err != nil {
			log.Fatalf("install: %v", err)
		}
		fmt.Print(out)

	case "uninstall":
		if *shellCmd == "" {
			log.Fatal("uninstall requires -c <package name>")
		}
		out, err := device.Uninstall(*shellCmd, *keepData)
		if err != nil {
			log.Fatalf("uninstall: %v", err)
		}
		fmt.Print(out)

	case "reboot":
		if err := device.Reboot(*rebootTarget); err != nil {
			log.Fatalf("reboot: %v", err)
		}
		fmt.Println("reboot sent")

	case "serve":
		server := httpapi.New(device, nil)
		addr := fmt.Sprintf(":%d", *servePort)
		log.Printf("adb-cli control plane listening on %s", addr)
		if err := http.ListenAndServe(addr, server.Handler()); err != nil {
			log.Fatalf("http server: %v", err)
		}

	default:
		log.Fatalf("unknown -mode %q", *mode)
	}
}

func connectTransport() (adbtransport.Transport, error) {
	if *tcpAddr != "" {
		return adbtransport.DialTCP(*tcpAddr, 10*time.Second)
	}
	return adbtransport.OpenUSBMatching(
		int(adbtransport.AdbClass), int(adbtransport.AdbSubclass), int(adbtransport.AdbProtocol),
	)
}

func loadSigners(cfg *adbconfig.Config) ([]adbsigner.Signer, error) {
	keyFile := *keyPath
	if keyFile == "" {
		keyFile = cfg.KeyPath
	}
	if keyFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		keyFile = home + "/.android/adbkey"
	}

	signer, err := adbsigner.LoadPEMSigner(keyFile)
	if err != nil {
		return nil, err
	}
	return []adbsigner.Signer{signer}, nil
}

func progressPrinter(label string) func(filename string, current, total int64) {
	return func(filename string, current, total int64) {
		if total <= 0 {
			return
		}
		fmt.Printf("\r%s: %d/%d bytes", label, current, total)
		if current >= total {
			fmt.Println()
		}
	}
}

func maybeCopy(text string) {
	if !*copyOutput {
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		log.Printf("clipboard copy failed: %v", err)
	}
}

func runFastboot(cfg *adbconfig.Config) {
	var t adbtransport.Transport
	var err error
	if *tcpAddr != "" {
		t, err = adbtransport.DialTCP(*tcpAddr, 10*time.Second)
	} else {
		t, err = adbtransport.OpenUSBMatching(
			int(adbtransport.FastbootClass), int(adbtransport.FastbootSubclass), int(adbtransport.FastbootProtocol),
		)
	}
	if err != nil {
		log.Fatalf("connect fastboot transport: %v", err)
	}

	client := fastbootclient.New(t, cfg.FastbootChunkKB, 10*time.Second)
	client.OnInfo = func(msg fastboot.Message) {
		fmt.Printf("(bootloader) %s\n", msg.Body)
	}
	defer client.Close()

	switch *fastbootOp {
	case "getvar":
		out, err := client.Getvar(*fastbootVar)
		if err != nil {
			log.Fatalf("getvar: %v", err)
		}
		fmt.Println(out)

	case "flash":
		if *fastbootPartition == "" || *localPath == "" {
			log.Fatal("flash requires -partition and -local <image path>")
		}
		out, err := client.FlashFromFile(*fastbootPartition, *localPath)
		if err != nil {
			log.Fatalf("flash: %v", err)
		}
		fmt.Println(out)

	case "erase":
		if *fastbootPartition == "" {
			log.Fatal("erase requires -partition")
		}
		if err := client.Erase(*fastbootPartition); err != nil {
			log.Fatalf("erase: %v", err)
		}
		fmt.Println("erased", *fastbootPartition)

	case "oem":
		out, err := client.Oem(*fastbootOemCmd)
		if err != nil {
			log.Fatalf("oem: %v", err)
		}
		fmt.Println(out)

	case "reboot":
		out, err := client.Reboot(*rebootTarget)
		if err != nil {
			log.Fatalf("reboot: %v", err)
		}
		fmt.Println(out)

	case "continue":
		out, err := client.Continue()
		if err != nil {
			log.Fatalf("continue: %v", err)
		}
		fmt.Println(out)

	default:
		log.Fatalf("unknown -fastboot-op %q", *fastbootOp)
	}
}
