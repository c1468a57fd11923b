package compare

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// SyncGroundFiles downloads every QC_*_flagged.csv under remoteDir into
// localDir over anonymous FTP and returns the number of files fetched.
// Individual file failures are logged and skipped.
func SyncGroundFiles(host, remoteDir, localDir string) (int, error) {
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return 0, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return 0, fmt.Errorf("ftp login: %w", err)
	}

	entries, err := conn.List(remoteDir)
	if err != nil {
		return 0, fmt.Errorf("ftp list %s: %w", remoteDir, err)
	}

	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return 0, fmt.Errorf("create ground directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile {
			continue
		}
		if !strings.HasPrefix(entry.Name, "QC_") || !strings.HasSuffix(entry.Name, "_flagged.csv") {
			continue
		}
		local := filepath.Join(localDir, entry.Name)
		if err := downloadFile(conn, path.Join(remoteDir, entry.Name), local); err != nil {
			log.Printf("compare: ftp %s: %v (skipping)", entry.Name, err)
			continue
		}
		log.Printf("compare: synced %s", entry.Name)
		count++
	}
	return count, nil
}

func downloadFile(conn *ftp.ServerConn, remote, local string) error {
	resp, err := conn.Retr(remote)
	if err != nil {
		return fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	out, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", local, err)
	}
	return out.Close()
}
