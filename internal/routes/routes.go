package routes

import (
	"net/http"

	"clinic-management-server/internal/config"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/handlers"
	"clinic-management-server/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Staff        *handlers.StaffHandler
	Invitations  *handlers.InvitationHandler
	Clinic       *handlers.ClinicHandler
	Patients     *handlers.PatientHandler
	Medicines    *handlers.MedicineHandler
	Appointments *handlers.AppointmentHandler
	Visits       *handlers.VisitHandler
	Invoices     *handlers.InvoiceHandler
}

const (
	owner        = domain.RoleClinicOwner
	doctor       = domain.RoleDoctor
	receptionist = domain.RoleReceptionist
	pharmacist   = domain.RolePharmacist
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, h Handlers, cfg *config.Config, limiter *middleware.IPRateLimiter) {
	role := middleware.RoleAuthMiddleware

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth", middleware.RateLimit(limiter))
		{
			authRoutes.POST("/register-clinic", h.Auth.RegisterClinic)
			authRoutes.POST("/login", h.Auth.Login)
			authRoutes.POST("/refresh-token", h.Auth.RefreshToken)
			authRoutes.POST("/confirm-email", h.Auth.ConfirmEmail)
			authRoutes.POST("/resend-verification", h.Auth.ResendVerification)
			authRoutes.POST("/forgot-password", h.Auth.ForgotPassword)
			authRoutes.POST("/reset-password", h.Auth.ResetPassword)
		}
		public.POST("/invitations/accept", middleware.RateLimit(limiter), h.Invitations.AcceptInvitation)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", h.Auth.Logout)
			authRoutesPrivate.GET("/profile", h.Auth.GetProfile)
			authRoutesPrivate.PUT("/profile", h.Auth.UpdateProfile)
			authRoutesPrivate.POST("/change-password", h.Auth.ChangePassword)
		}

		// Cross-tenant reporting
		admin := private.Group("/admin", role(domain.RoleSuperAdmin))
		{
			admin.GET("/invoices", h.Invoices.GetAllInvoices)
		}

		clinicRoutes := private.Group("/clinic", role(owner, doctor, receptionist, pharmacist))
		{
			clinicRoutes.GET("", h.Clinic.GetClinic)
			clinicRoutes.PUT("", role(owner), h.Clinic.UpdateClinic)
			clinicRoutes.GET("/branches", h.Clinic.GetBranches)
			clinicRoutes.POST("/branches", role(owner), h.Clinic.CreateBranch)
		}

		catalog := private.Group("/catalog", role(owner, doctor, receptionist, pharmacist))
		{
			catalog.GET("/appointment-types", h.Clinic.GetAppointmentTypes)
			catalog.POST("/appointment-types", role(owner), h.Clinic.CreateAppointmentType)
			catalog.GET("/medical-services", h.Clinic.GetMedicalServices)
			catalog.POST("/medical-services", role(owner), h.Clinic.CreateMedicalService)
			catalog.GET("/supplies", h.Clinic.GetSupplies)
			catalog.POST("/supplies", role(owner, pharmacist), h.Clinic.CreateSupply)
			catalog.GET("/chronic-diseases", h.Clinic.GetChronicDiseases)
			catalog.POST("/chronic-diseases", role(owner, doctor), h.Clinic.CreateChronicDisease)
		}

		staff := private.Group("/staff")
		{
			// Accessible to every clinic role for booking
			staff.GET("/doctors", role(owner, doctor, receptionist, pharmacist), h.Staff.GetDoctors)
			staff.GET("", role(owner), h.Staff.GetStaff)
			staff.POST("/:id/deactivate", role(owner), h.Staff.DeactivateUser)
		}

		invitations := private.Group("/invitations", role(owner))
		{
			invitations.POST("", h.Invitations.CreateInvitation)
			invitations.GET("", h.Invitations.GetInvitations)
			invitations.DELETE("/:id", h.Invitations.CancelInvitation)
		}

		patients := private.Group("/patients", role(owner, doctor, receptionist))
		{
			patients.POST("", h.Patients.CreatePatient)
			patients.GET("", h.Patients.GetPatients)
			patients.GET("/deleted", role(owner), h.Patients.GetDeletedPatients)
			patients.GET("/:id", h.Patients.GetPatientByID)
			patients.PUT("/:id", h.Patients.UpdatePatient)
			patients.DELETE("/:id", role(owner, receptionist), h.Patients.DeletePatient)
			patients.POST("/:id/restore", role(owner), h.Patients.RestorePatient)
			patients.POST("/:id/photo", h.Patients.UploadPhoto)
			patients.GET("/:id/visits", role(owner, doctor), h.Visits.GetVisitsForPatient)
		}

		medicines := private.Group("/medicines", role(owner, doctor, receptionist, pharmacist))
		{
			medicines.GET("", h.Medicines.GetMedicines)
			medicines.GET("/low-stock", role(owner, pharmacist), h.Medicines.GetLowStock)
			medicines.GET("/:id", h.Medicines.GetMedicineByID)
			medicines.POST("", role(owner, pharmacist), h.Medicines.CreateMedicine)
			medicines.PUT("/:id", role(owner, pharmacist), h.Medicines.UpdateMedicine)
			medicines.DELETE("/:id", role(owner, pharmacist), h.Medicines.DeleteMedicine)
			medicines.POST("/:id/stock", role(owner, pharmacist), h.Medicines.AddStock)
		}

		appointments := private.Group("/appointments", role(owner, doctor, receptionist))
		{
			appointments.POST("", h.Appointments.CreateAppointment)
			appointments.GET("", h.Appointments.GetAppointments)
			appointments.GET("/:id", h.Appointments.GetAppointmentByID)
			appointments.POST("/:id/confirm", h.Appointments.ConfirmAppointment)
			appointments.POST("/:id/complete", role(owner, doctor), h.Appointments.CompleteAppointment)
			appointments.POST("/:id/cancel", h.Appointments.CancelAppointment)
			appointments.POST("/:id/discount", role(owner, receptionist), h.Appointments.ApplyDiscount)
			appointments.POST("/:id/payments", role(owner, receptionist), h.Appointments.RecordPayment)
		}

		visits := private.Group("/visits", role(owner, doctor))
		{
			visits.POST("", role(doctor), h.Visits.CreateVisit)
			visits.GET("/:id", h.Visits.GetVisitByID)
			visits.POST("/:id/attachments", role(doctor), h.Visits.UploadAttachment)
			visits.GET("/:id/attachments/:attachmentId", h.Visits.GetAttachment)
			visits.DELETE("/:id/attachments/:attachmentId", role(doctor), h.Visits.DeleteAttachment)
		}

		invoices := private.Group("/invoices", role(owner, receptionist, pharmacist))
		{
			invoices.POST("", h.Invoices.CreateInvoice)
			invoices.GET("", h.Invoices.GetInvoices)
			invoices.GET("/:id", h.Invoices.GetInvoiceByID)
			invoices.POST("/:id/payments", h.Invoices.RecordPayment)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
