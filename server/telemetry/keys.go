package telemetry

// Keys in the pipeline's table
const (
	KeyDetections       = "Detections"        // JSON array of scored detections
	KeyClosestDetection = "Closest Detection" // JSON object, or "" when nothing was selected
	KeyNetworkFPS       = "Network FPS"
	KeyLatency          = "Latency" // Milliseconds between the start of consecutive iterations
	KeyPipelineFPS      = "Pipeline FPS"
	KeyStatus           = "Status" // StatusSleeping or StatusProcessing
	KeyEnabled          = "Enabled"
	KeyRecord           = "Record"
	KeyRecordInterval   = "Record Interval"
	KeyClassFilter      = "Class Filter"
	KeyCaptureSize      = "Capture Size"
	KeyCaptureFormat    = "Capture Format"
	KeyError            = "Error"       // Last error, or "" if the last iteration succeeded
	KeyErrorCount       = "Error Count" // Number of iterations that failed since startup
)

const (
	StatusSleeping   = "Sleeping"
	StatusProcessing = "Processing"
)

// Table and key used to advertise camera streams to the dashboard
const (
	CameraPublisherTable = "CameraPublisher"
	KeyStreams           = "streams"
)
