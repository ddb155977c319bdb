package ui

import (
	"os/exec"
	"runtime"
)

type commandRunner func(name string, args ...string) error

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

func openCommandForOS(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

func openWithRunner(goos, target string, run commandRunner) error {
	name, args := openCommandForOS(goos, target)
	return run(name, args...)
}

// Open hands a URL or file path to the desktop's default handler.
func Open(target string) error {
	return openWithRunner(runtime.GOOS, target, startCommand)
}
