// Package httpapi exposes a local control plane over adbclient.Device and
// fastbootclient.Client, in the style of this lineage's embedded HTTP
// servers: gin.New, a Recovery middleware, one route group, gin.H JSON
// responses.
package httpapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"adbhost/internal/adblog"
	"adbhost/pkg/adbclient"
	"adbhost/pkg/fastbootclient"
	"adbhost/pkg/filesync"
)

// Server wraps a connected Device (and, once in fastboot mode, a Client)
// behind a gin router.
type Server struct {
	mu       sync.Mutex
	device   *adbclient.Device
	fastboot *fastbootclient.Client
	router   *gin.Engine
}

// New builds a Server. Either device or fb may be nil; handlers for the
// missing side respond 503.
func New(device *adbclient.Device, fb *fastbootclient.Client) *Server {
	s := &Server{device: device, fastboot: fb}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.POST("/shell", s.handleShell)
		api.POST("/push", s.handlePush)
		api.GET("/pull", s.handlePull)
		api.GET("/stat", s.handleStat)
		api.GET("/list", s.handleList)
		api.POST("/install", s.handleInstall)
		api.POST("/uninstall", s.handleUninstall)
		api.POST("/reboot", s.handleReboot)
		api.GET("/device", s.handleDeviceInfo)

		api.POST("/fastboot/flash", s.handleFastbootFlash)
		api.POST("/fastboot/getvar", s.handleFastbootGetvar)
		api.POST("/fastboot/oem", s.handleFastbootOem)
		api.POST("/fastboot/reboot", s.handleFastbootReboot)
	}

	s.router = router
	return s
}

// Handler returns the underlying http.Handler for use with an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

type shellRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleShell(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var req shellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	out, err := s.device.Shell(req.Command)
	if err != nil {
		adblog.Get().Logf("shell %q failed: %v", req.Command, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

func (s *Server) handlePush(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	localPath := c.Query("local_path")
	deviceFilename := c.Query("device_filename")
	if localPath == "" || deviceFilename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "local_path and device_filename are required"})
		return
	}

	if err := s.device.Push(localPath, deviceFilename, nil); err != nil {
		adblog.Get().Logf("push %s -> %s failed: %v", localPath, deviceFilename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pushed": deviceFilename})
}

func (s *Server) handlePull(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deviceFilename := c.Query("device_filename")
	if deviceFilename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_filename is required"})
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Disposition", `attachment; filename="`+deviceFilename+`"`)
	c.Header("Content-Type", "application/octet-stream")

	if err := s.device.Pull(deviceFilename, c.Writer, nil); err != nil {
		adblog.Get().Logf("pull %s failed: %v", deviceFilename, err)
		// Headers are already flushed; nothing more to do beyond logging.
		return
	}
}

func (s *Server) handleStat(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deviceFilename := c.Query("device_filename")
	mode, size, mtime, err := s.device.Stat(deviceFilename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "size": size, "mtime": mtime})
}

func (s *Server) handleList(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	devicePath := c.Query("path")
	entries, err := s.device.List(devicePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type installRequest struct {
	ApkPath          string `json:"apk_path"`
	DestinationDir   string `json:"destination_dir"`
	ReplaceExisting  bool   `json:"replace_existing"`
	GrantPermissions bool   `json:"grant_permissions"`
}

func (s *Server) handleInstall(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var req installRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var onProgress filesync.ProgressFunc
	out, err := s.device.Install(req.ApkPath, req.DestinationDir, req.ReplaceExisting, req.GrantPermissions, onProgress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

type uninstallRequest struct {
	PackageName string `json:"package_name"`
	KeepData    bool   `json:"keep_data"`
}

func (s *Server) handleUninstall(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var req uninstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	out, err := s.device.Uninstall(req.PackageName, req.KeepData)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

type rebootRequest struct {
	Destination string `json:"destination"`
}

func (s *Server) handleReboot(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var req rebootRequest
	c.ShouldBindJSON(&req)

	if err := s.device.Reboot(req.Destination); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reboot sent"})
}

func (s *Server) handleDeviceInfo(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no adb device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"state":       s.device.State(),
		"build_props": s.device.BuildProps(),
	})
}

type fastbootFlashRequest struct {
	Partition string `json:"partition"`
	ImagePath string `json:"image_path"`
}

func (s *Server) handleFastbootFlash(c *gin.Context) {
	if s.fastboot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no fastboot device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var req fastbootFlashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	out, err := s.fastboot.FlashFromFile(req.Partition, req.ImagePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

type fastbootVarRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleFastbootGetvar(c *gin.Context) {
	if s.fastboot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no fastboot device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var req fastbootVarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	out, err := s.fastboot.Getvar(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": out})
}

type fastbootOemRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleFastbootOem(c *gin.Context) {
	if s.fastboot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no fastboot device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var req fastbootOemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	out, err := s.fastboot.Oem(req.Command)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

func (s *Server) handleFastbootReboot(c *gin.Context) {
	if s.fastboot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no fastboot device connected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var req rebootRequest
	c.ShouldBindJSON(&req)

	out, err := s.fastboot.Reboot(req.Destination)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}
