package openlisa

import (
	"fmt"
	"os"
)

// SendFile uploads a local file to the server under targetName.
func (s *SDK) SendFile(localPath, targetName string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("openlisa: read %s: %w", localPath, err)
	}
	return s.SendFileBytes(targetName, data)
}

// SendFileBytes uploads in-memory file contents under targetName.
func (s *SDK) SendFileBytes(targetName string, data []byte) error {
	c, err := s.proto()
	if err != nil {
		return err
	}
	return c.SendFile(targetName, data)
}

// GetFile downloads a remote file and writes it to localPath.
func (s *SDK) GetFile(remoteName, localPath string) error {
	data, err := s.GetFileBytes(remoteName)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return fmt.Errorf("openlisa: write %s: %w", localPath, err)
	}
	return nil
}

// GetFileBytes downloads a remote file and returns its contents.
func (s *SDK) GetFileBytes(remoteName string) ([]byte, error) {
	c, err := s.proto()
	if err != nil {
		return nil, err
	}
	return c.GetFile(remoteName)
}
