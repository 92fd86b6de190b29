package routes

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Entry Routes
	Landing = "/"
	Entry   = "/auth"

	// Auth Routes - Password Management
	ForgotPassword = "/auth/forgot-password"
	ResetPassword  = "/auth/reset-password"

	// Public Routes
	PublicHome        = "/home"
	PublicApply       = "/apply"
	PublicStatus      = "/application-status"
	PublicProfile     = "/profile"
	PublicPollingInfo = "/polling-info"
	PublicAbout       = "/about"

	// Officer Routes
	OfficerPrefix       = "/officer"
	OfficerDashboard    = "/officer/dashboard"
	OfficerApplications = "/officer/applications"
	OfficerVoters       = "/officer/voters"
	OfficerProfile      = "/officer/profile"
)
