package vulkan

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-passes/engine/core"
	emath "github.com/spaghettifunk/anima-passes/engine/math"
	"github.com/spaghettifunk/anima-passes/engine/renderer"
	"github.com/spaghettifunk/anima-passes/engine/renderer/metadata"
)

// TargetLookup resolves the handles the scheduler binds to registered targets.
type TargetLookup interface {
	Get(handle metadata.RenderTargetHandle) (*metadata.RenderTarget, error)
}

// VulkanBackend renders offscreen. Every Bind ends the render pass in flight and
// begins a new one whose load ops follow the requested clear flags.
type VulkanBackend struct {
	appName     string
	FrameNumber uint64
	context     *VulkanContext
	targets     TargetLookup

	renderpasses map[renderpassKey]*VulkanRenderpass
	framebuffers map[framebufferKey]*VulkanFramebuffer
	active       *VulkanRenderpass
	recording    bool
	draws        uint64

	debug bool
}

func New(appName string, debug bool) *VulkanBackend {
	return &VulkanBackend{
		appName:      appName,
		FrameNumber:  0,
		context:      &VulkanContext{Allocator: nil},
		renderpasses: make(map[renderpassKey]*VulkanRenderpass),
		framebuffers: make(map[framebufferKey]*VulkanFramebuffer),
		debug:        debug,
	}
}

// SetTargets sets where bound handles are looked up. It must be called before
// the first Bind.
func (vb *VulkanBackend) SetTargets(targets TargetLookup) {
	vb.targets = targets
}

func (vb *VulkanBackend) Initialize() error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		core.LogError("failed to load the Vulkan loader: %s", err)
		return err
	}
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	// Setup Vulkan instance.
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(vb.appName),
		PEngineName:        VulkanSafeString("Anima Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	requiredValidationLayerNames := []string{}
	if vb.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		requiredValidationLayerNames = append(requiredValidationLayerNames, "VK_LAYER_KHRONOS_validation")
		if err := checkValidationLayers(requiredValidationLayerNames); err != nil {
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, vb.context.Allocator, &vb.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vb.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vb.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vb.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vb.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	if err := DeviceCreate(vb.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	cb, err := NewVulkanCommandBuffer(vb.context, vb.context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	vb.context.GraphicsCommandBuffer = cb

	// Created signaled so the first BeginFrame does not wait forever.
	fence, err := NewFence(vb.context, true)
	if err != nil {
		return err
	}
	vb.context.InFlightFence = fence

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")
	var availableLayerCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
	}
	availableLayers := make([]vk.LayerProperties, availableLayerCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
	}

	for _, name := range required {
		core.LogInfo("Searching for layer: %s...", name)
		found := false
		for j := range availableLayers {
			availableLayers[j].Deref()
			end := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
			if name == vk.ToString(availableLayers[j].LayerName[:end+1]) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	return nil
}

func (vb *VulkanBackend) Shutdown() error {
	if vb.context.Device == nil {
		return nil
	}
	vk.DeviceWaitIdle(vb.context.Device.LogicalDevice)

	// Destroy in the opposite order of creation.
	for key, fb := range vb.framebuffers {
		fb.Destroy(vb.context)
		delete(vb.framebuffers, key)
	}
	for key, rp := range vb.renderpasses {
		rp.RenderpassDestroy(vb.context)
		delete(vb.renderpasses, key)
	}

	if vb.context.InFlightFence != nil {
		vb.context.InFlightFence.Destroy(vb.context)
		vb.context.InFlightFence = nil
	}
	if vb.context.GraphicsCommandBuffer != nil {
		vb.context.GraphicsCommandBuffer.Free(vb.context, vb.context.Device.GraphicsCommandPool)
		vb.context.GraphicsCommandBuffer = nil
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vb.context)

	if vb.debug && vb.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vb.context.Instance, vb.context.debugMessenger, vb.context.Allocator)
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vb.context.Instance, vb.context.Allocator)
	vb.context.Device = nil
	return nil
}

// BeginFrame waits for the previous submission and starts recording.
func (vb *VulkanBackend) BeginFrame() error {
	if err := vb.context.InFlightFence.Wait(vb.context, math.MaxUint64); err != nil {
		core.LogWarn(err.Error())
		return err
	}
	if err := vb.context.InFlightFence.Reset(vb.context); err != nil {
		return err
	}

	cb := vb.context.GraphicsCommandBuffer
	if err := cb.Begin(); err != nil {
		return err
	}
	vb.recording = true
	vb.active = nil
	return nil
}

// EndFrame closes the render pass in flight and submits the frame.
func (vb *VulkanBackend) EndFrame() error {
	if !vb.recording {
		return nil
	}
	cb := vb.context.GraphicsCommandBuffer
	vb.endActive(cb)
	vb.recording = false
	if err := cb.Submit(vb.context.Device.GraphicsQueue, vb.context.InFlightFence); err != nil {
		return err
	}
	vb.FrameNumber++
	return nil
}

func (vb *VulkanBackend) endActive(cb *VulkanCommandBuffer) {
	if vb.active != nil {
		vb.active.RenderpassEnd(cb)
		vb.active = nil
	}
}

func (vb *VulkanBackend) Bind(colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle, flags metadata.RenderpassClearFlag, clearColour emath.Vec4) error {
	if !vb.recording {
		return fmt.Errorf("bind outside of a frame")
	}
	if vb.targets == nil {
		return fmt.Errorf("no target lookup configured")
	}

	plan, err := planAttachments(vb.targets, colours, depth)
	if err != nil {
		return err
	}

	rp, err := vb.renderpass(newRenderpassKey(plan.colours[:plan.colourCount], plan.depth, flags))
	if err != nil {
		return err
	}
	fb, err := vb.framebuffer(framebufferKey{
		renderpass: rp.Handle,
		views:      plan.views,
		viewCount:  plan.viewCount,
		width:      plan.width,
		height:     plan.height,
	})
	if err != nil {
		return err
	}

	cb := vb.context.GraphicsCommandBuffer
	vb.endActive(cb)
	rp.RenderpassBegin(cb, fb, plan.width, plan.height, clearColour.Elements())
	vb.active = rp
	return nil
}

// attachmentPlan is the image set of one Bind. Empty colour slots stay nil and
// contribute no image view.
type attachmentPlan struct {
	colours     [metadata.MAX_COLOUR_ATTACHMENTS]*metadata.RenderTarget
	colourCount int
	depth       *metadata.RenderTarget
	views       [metadata.MAX_COLOUR_ATTACHMENTS + 1]vk.ImageView
	viewCount   int
	width       uint32
	height      uint32
}

func planAttachments(targets TargetLookup, colours []metadata.RenderTargetHandle, depth metadata.RenderTargetHandle) (attachmentPlan, error) {
	plan := attachmentPlan{
		colourCount: len(colours),
		width:       math.MaxUint32,
		height:      math.MaxUint32,
	}
	if len(colours) > metadata.MAX_COLOUR_ATTACHMENTS {
		return plan, fmt.Errorf("bind with %d colour attachments, at most %d supported", len(colours), metadata.MAX_COLOUR_ATTACHMENTS)
	}

	track := func(handle metadata.RenderTargetHandle) (*metadata.RenderTarget, error) {
		target, err := targets.Get(handle)
		if err != nil {
			return nil, err
		}
		image, ok := target.InternalData.(*VulkanImage)
		if !ok || image == nil {
			return nil, fmt.Errorf("render target '%s' has no image", target.Name)
		}
		plan.views[plan.viewCount] = image.View
		plan.viewCount++
		plan.width = min(plan.width, image.Width)
		plan.height = min(plan.height, image.Height)
		return target, nil
	}

	for i, handle := range colours {
		if handle == metadata.TargetHandleNone {
			continue
		}
		target, err := track(handle)
		if err != nil {
			return plan, err
		}
		plan.colours[i] = target
	}

	switch depth {
	case metadata.TargetHandleNone:
	case metadata.TargetHandleCameraDepth:
		return plan, fmt.Errorf("camera depth sentinel reached the device unresolved")
	default:
		target, err := track(depth)
		if err != nil {
			return plan, err
		}
		plan.depth = target
	}
	if plan.viewCount == 0 {
		return plan, fmt.Errorf("bind without attachments")
	}
	return plan, nil
}

func (vb *VulkanBackend) renderpass(key renderpassKey) (*VulkanRenderpass, error) {
	if rp, ok := vb.renderpasses[key]; ok {
		return rp, nil
	}
	rp, err := RenderpassCreate(vb.context, key)
	if err != nil {
		return nil, err
	}
	vb.renderpasses[key] = rp
	return rp, nil
}

func (vb *VulkanBackend) framebuffer(key framebufferKey) (*VulkanFramebuffer, error) {
	if fb, ok := vb.framebuffers[key]; ok {
		return fb, nil
	}
	rp := vb.findRenderpass(key.renderpass)
	fb, err := FramebufferCreate(vb.context, rp, key.width, key.height, key.views[:key.viewCount])
	if err != nil {
		return nil, err
	}
	vb.framebuffers[key] = fb
	return fb, nil
}

func (vb *VulkanBackend) findRenderpass(handle vk.RenderPass) *VulkanRenderpass {
	for _, rp := range vb.renderpasses {
		if rp.Handle == handle {
			return rp
		}
	}
	return nil
}

// Draw counts the request. Pipelines and geometry are owned by the passes.
func (vb *VulkanBackend) Draw(request renderer.DrawRequest) error {
	if vb.active == nil {
		return fmt.Errorf("draw '%s/%s' without a bound render pass", request.Pass, request.Label)
	}
	vb.draws += uint64(request.Count)
	return nil
}

// CreateTarget allocates the image backing target and moves it to its attachment layout.
func (vb *VulkanBackend) CreateTarget(target *metadata.RenderTarget) error {
	image, err := ImageCreate(vb.context, target.Width, target.Height, VulkanFormat(target.Format), target.Format.IsDepth())
	if err != nil {
		return err
	}

	err = RunSingleUse(vb.context, vb.context.Device.GraphicsCommandPool, vb.context.Device.GraphicsQueue, image.TransitionToAttachmentLayout)
	if err != nil {
		image.Destroy(vb.context)
		return err
	}
	target.InternalData = image
	return nil
}

// DestroyTarget releases the image and every framebuffer referencing it.
func (vb *VulkanBackend) DestroyTarget(target *metadata.RenderTarget) {
	image, ok := target.InternalData.(*VulkanImage)
	if !ok || image == nil {
		return
	}
	vk.DeviceWaitIdle(vb.context.Device.LogicalDevice)
	for key, fb := range vb.framebuffers {
		for _, view := range key.views[:key.viewCount] {
			if view == image.View {
				fb.Destroy(vb.context)
				delete(vb.framebuffers, key)
				break
			}
		}
	}
	image.Destroy(vb.context)
	target.InternalData = nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
