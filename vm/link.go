package vm

import "fmt"

// ---------------------------------------------------------------------------
// Site resolution and link checking
// ---------------------------------------------------------------------------

// quickenInvoke resolves the invoke site at bci and installs its
// specialized node. Resolution and classification run under the site
// lock; the caller executes the node after it is returned.
func (e *Engine) quickenInvoke(mn *methodNode, site *Method, op Opcode, bci int, cpi uint16) *quickNode {
	return mn.installOrReuse(bci, func() *quickNode {
		target, holder := site.Pool.ResolveMethod(cpi)
		if target == nil {
			e.meta.Throw(e.meta.NoSuchMethod, fmt.Sprintf("%s: unresolved method reference %d", site, cpi))
		}
		node := e.dispatchQuickened(op, target, holder, site)
		if e.profile != nil {
			e.profile.Quickened(mn.method.String(), bci, node.kind.String())
		}
		return node
	})
}

// quickenInvokeDynamic is the variant whose resolution must run outside
// the site lock: the bootstrap may run arbitrary guest code. Afterwards
// the lock is retaken and re-checked; a racing installer's node wins.
func (e *Engine) quickenInvokeDynamic(mn *methodNode, site *Method, bci int, cpi uint16) *quickNode {
	target := site.Pool.ResolveInvokeDynamic(cpi)
	if target == nil {
		e.meta.Throw(e.meta.NoSuchMethod, fmt.Sprintf("%s: unresolved dynamic call site %d", site, cpi))
	}
	node := &quickNode{
		kind:       qInvokeDynamic,
		method:     target,
		argSlots:   target.ArgSlots(),
		returnKind: target.Return,
	}
	return mn.adoptOrInstall(bci, node)
}

// dispatchQuickened classifies a resolved invoke target, applying the
// link checks for the call kind, and picks the dispatch strategy.
func (e *Engine) dispatchQuickened(op Opcode, target *Method, holder *Class, site *Method) *quickNode {
	if target.PolySignature {
		return e.invokeNode(qInvokeHandle, target)
	}

	var kind quickKind
	switch op {
	case OpInvokeStatic:
		if !target.IsStatic() {
			e.meta.Throw(e.meta.IncompatibleClassChange,
				fmt.Sprintf("Expected static method %s", target))
		}
		kind = qInvokeStatic

	case OpInvokeInterface:
		if target.IsStatic() {
			e.meta.Throw(e.meta.IncompatibleClassChange,
				fmt.Sprintf("Expected instance not static method %s", target))
		}
		if target.IsPrivate() && holder != nil && holder.OldFormat {
			e.meta.Throw(e.meta.IncompatibleClassChange,
				fmt.Sprintf("Interface call to private method %s", target))
		}
		if target.ISlot < 0 {
			// Not on any interface slot: the target is really dispatched
			// like a class method.
			if target.IsPrivate() || target.IsFinal() {
				kind = qInvokeSpecial
			} else {
				kind = qInvokeVirtual
			}
		} else {
			kind = qInvokeInterface
		}

	case OpInvokeVirtual:
		if target.IsStatic() {
			e.meta.Throw(e.meta.IncompatibleClassChange,
				fmt.Sprintf("Expected instance not static method %s", target))
		}
		if target.IsFinal() || target.Class.IsFinal() || target.IsPrivate() {
			// No other implementation can exist; link it directly.
			kind = qInvokeSpecial
		} else {
			kind = qInvokeVirtual
		}

	case OpInvokeSpecial:
		if target.IsStatic() {
			e.meta.Throw(e.meta.IncompatibleClassChange,
				fmt.Sprintf("Expected instance not static method %s", target))
		}
		if target.IsConstructor() && holder != nil && target.Class != holder {
			e.meta.Throw(e.meta.NoSuchMethod,
				fmt.Sprintf("%s.%s%s", holder.Name, target.Name, target.Sig))
		}
		if !target.IsConstructor() && holder != nil && !holder.IsInterface() &&
			site.Class.HasSuperFlag() && holder.IsStrictSuperclassOf(site.Class) {
			// Alternate selection: start the search from the caller's
			// direct superclass rather than the symbolic holder.
			if re := site.Class.Super.FindMethod(target.Name, target.Sig); re != nil {
				target = re
			}
		}
		kind = qInvokeSpecial

	default:
		panic(fmt.Sprintf("vm: %s is not an invoke opcode", op.Name()))
	}

	if e.opts.InlineFieldAccessors && kind == qInvokeSpecial && !target.IsStatic() {
		if target.Getter != nil {
			return &quickNode{
				kind:       qInlineGetter,
				method:     target,
				field:      target.Getter,
				argSlots:   target.ArgSlots(),
				returnKind: target.Return,
			}
		}
		if target.Setter != nil {
			return &quickNode{
				kind:       qInlineSetter,
				method:     target,
				field:      target.Setter,
				argSlots:   target.ArgSlots(),
				returnKind: target.Return,
			}
		}
	}
	return e.invokeNode(kind, target)
}

func (e *Engine) invokeNode(kind quickKind, target *Method) *quickNode {
	return &quickNode{
		kind:       kind,
		method:     target,
		argSlots:   target.ArgSlots(),
		returnKind: target.Return,
	}
}

// revertInlinedAccessor replaces a speculative inlined accessor node with
// the general call node it folded away, preserving the argument layout.
// The receiver turned out not to belong to this object model.
func (e *Engine) revertInlinedAccessor(mn *methodNode, node *quickNode) *quickNode {
	mn.invalidateNoForeign()
	return mn.requicken(node.bci, e.invokeNode(qInvokeSpecial, node.method))
}

// quickenFieldAccess resolves the field site at bci, applying the field
// link checks, and installs its node.
func (e *Engine) quickenFieldAccess(mn *methodNode, site *Method, op Opcode, bci int, cpi uint16) *quickNode {
	return mn.installOrReuse(bci, func() *quickNode {
		f, _ := site.Pool.ResolveField(cpi)
		if f == nil {
			e.meta.Throw(e.meta.NoSuchField, fmt.Sprintf("%s: unresolved field reference %d", site, cpi))
		}
		wantStatic := op == OpGetStatic || op == OpPutStatic
		if f.IsStatic() != wantStatic {
			if wantStatic {
				e.meta.Throw(e.meta.IncompatibleClassChange,
					fmt.Sprintf("Expected static field %s", f))
			}
			e.meta.Throw(e.meta.IncompatibleClassChange,
				fmt.Sprintf("Expected instance not static field %s", f))
		}
		isPut := op == OpPutField || op == OpPutStatic
		if isPut && f.IsFinal() && site.Class != f.Class {
			e.meta.Throw(e.meta.IllegalAccess,
				fmt.Sprintf("Update to final field %s attempted from %s", f, site.Class.Name))
		}
		var kind quickKind
		switch op {
		case OpGetField:
			kind = qGetField
		case OpPutField:
			kind = qPutField
		case OpGetStatic:
			kind = qGetStatic
		case OpPutStatic:
			kind = qPutStatic
		}
		node := &quickNode{kind: kind, field: f, returnKind: f.Kind}
		if e.profile != nil {
			e.profile.Quickened(mn.method.String(), bci, kind.String())
		}
		return node
	})
}

// quickenCast resolves and installs a checkcast/instanceof site.
func (e *Engine) quickenCast(mn *methodNode, site *Method, op Opcode, bci int, cpi uint16) *quickNode {
	return mn.installOrReuse(bci, func() *quickNode {
		c := site.Pool.ResolveClass(cpi)
		if c == nil {
			e.meta.Throw(e.meta.NoSuchField, fmt.Sprintf("%s: unresolved class reference %d", site, cpi))
		}
		kind := qCheckCast
		if op == OpInstanceOf {
			kind = qInstanceOf
		}
		return &quickNode{kind: kind, class: c}
	})
}
