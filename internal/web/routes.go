package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	attendanceHandler := handlers.NewAttendanceHandler(s.services.Attendance)
	shiftsHandler := handlers.NewShiftsHandler(s.services.Store, s.services.Attendance)
	identitiesHandler := handlers.NewIdentitiesHandler(s.services.Store)
	enrollmentHandler := handlers.NewEnrollmentHandler(s.services.Enrollment)
	leaveHandler := handlers.NewLeaveHandler(s.services.Leave, s.services.Attendance.Location())
	payrollHandler := handlers.NewPayrollHandler(s.services.Payroll)
	configHandler := handlers.NewConfigHandler(s.config)
	indexHandler := handlers.NewIndexHandler()

	// Health check (no actor required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Kiosk and employee self-service
		r.Get("/config", configHandler.Get)
		r.Post("/attendance/scan", attendanceHandler.Scan)
		r.Get("/attendance/summary", attendanceHandler.Summary)
		r.Get("/identities/{id}/attendance", attendanceHandler.History)
		r.Get("/shifts", shiftsHandler.List)
		r.Get("/shifts/current", shiftsHandler.Current)
		r.Post("/leaves", leaveHandler.Submit)

		// Administration requires an actor set by the authenticating proxy
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor())

			r.Post("/attendance/transition", attendanceHandler.Transition)

			// Identities
			r.Get("/identities", identitiesHandler.List)
			r.Post("/identities", identitiesHandler.Create)
			r.Get("/identities/{id}", identitiesHandler.Get)
			r.Put("/identities/{id}/active", identitiesHandler.SetActive)
			r.Delete("/identities/{id}", identitiesHandler.Delete)

			// Enrollment
			r.Post("/enrollments", enrollmentHandler.Start)
			r.Get("/enrollments/{sessionId}", enrollmentHandler.Status)
			r.Post("/enrollments/{sessionId}/captures/{step}", enrollmentHandler.Capture)
			r.Post("/enrollments/{sessionId}/finish", enrollmentHandler.Finish)
			r.Delete("/enrollments/{sessionId}", enrollmentHandler.Cancel)

			// Leave
			r.Get("/leaves", leaveHandler.List)
			r.Post("/leaves/{id}/approve", leaveHandler.Approve)
			r.Post("/leaves/{id}/reject", leaveHandler.Reject)

			// Payroll
			r.Get("/payroll", payrollHandler.Compute)
			r.Post("/payroll/confirm", payrollHandler.Confirm)
			r.Get("/payroll/history", payrollHandler.History)

			// Index
			r.Post("/index/rebuild", indexHandler.Rebuild)
		})
	})
}
